package models

// Governorate is an entry of the fixed governorate catalogue
type Governorate struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Governorates lists every governorate an expert or customer can be in.
// Names match the region names produced by the boundary dataset.
var Governorates = []Governorate{
	{ID: 1, Name: "القاهرة"},
	{ID: 2, Name: "الجيزة"},
	{ID: 3, Name: "الإسكندرية"},
	{ID: 4, Name: "الدقهلية"},
	{ID: 5, Name: "البحر الأحمر"},
	{ID: 6, Name: "البحيرة"},
	{ID: 7, Name: "الفيوم"},
	{ID: 8, Name: "الغربية"},
	{ID: 9, Name: "الإسماعيلية"},
	{ID: 10, Name: "المنوفية"},
	{ID: 11, Name: "القليوبية"},
	{ID: 12, Name: "الوادي الجديد"},
	{ID: 13, Name: "السويس"},
	{ID: 14, Name: "الشرقية"},
	{ID: 15, Name: "أسوان"},
	{ID: 16, Name: "بني سويف"},
	{ID: 17, Name: "بورسعيد"},
	{ID: 18, Name: "جنوب سيناء"},
	{ID: 19, Name: "كفر الشيخ"},
	{ID: 20, Name: "مطروح"},
	{ID: 21, Name: "قنا"},
	{ID: 22, Name: "شمال سيناء"},
	{ID: 23, Name: "أسيوط"},
	{ID: 24, Name: "سوهاج"},
	{ID: 25, Name: "الأقصر"},
	{ID: 26, Name: "دمياط"},
	{ID: 27, Name: "المنيا"},
}

// GovernorateNameByID returns the name for id, or "" when unknown
func GovernorateNameByID(id int) string {
	for _, g := range Governorates {
		if g.ID == id {
			return g.Name
		}
	}
	return ""
}

// IsKnownGovernorate reports whether name is in the catalogue
func IsKnownGovernorate(name string) bool {
	for _, g := range Governorates {
		if g.Name == name {
			return true
		}
	}
	return false
}
