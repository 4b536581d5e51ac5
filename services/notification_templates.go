package services

import (
	"bytes"
	"strconv"
	"text/template"

	"github.com/sa3tha/sa3tha_backend/models"
)

// Prompt actions carried in the notification data so the app can open the
// right screen.
const (
	ActionConfirmDeal   = "confirm_deal"
	ActionProvideDate   = "provide_date"
	ActionConfirmNoDeal = "confirm_no_deal"
	ActionRateExpert    = "rate_expert"
	ActionViewExperts   = "view_experts"
)

type messageTemplate struct {
	title string
	body  *template.Template
}

var (
	expertFollowupTmpl = messageTemplate{
		title: "متابعة الطلب 📋",
		body:  template.Must(template.New("expert_followup").Parse(`هل تم الاتفاق مع العميل{{if .CustomerName}} {{.CustomerName}}{{end}}؟`)),
	}
	customerDealTmpl = messageTemplate{
		title: "تأكيد الاتفاق ✅",
		body:  template.Must(template.New("customer_deal").Parse(`أكد الخبير {{.ExpertName}} الاتفاق. متى موعد التنفيذ؟`)),
	}
	customerNoDealTmpl = messageTemplate{
		title: "متابعة الطلب ❓",
		body:  template.Must(template.New("customer_no_deal").Parse(`أفاد الخبير {{.ExpertName}} بعدم الاتفاق. هل هذا صحيح؟`)),
	}
	reviewRequestTmpl = messageTemplate{
		title: "كيف كانت خدمتك؟ ⭐",
		body:  template.Must(template.New("review_request").Parse(`نرجو تقييم الخبير {{.ExpertName}} لمساعدتنا في تحسين الخدمة.`)),
	}
	suggestionsTmpl = messageTemplate{
		title: "خبراء متاحين في منطقتك! 🔧",
		body:  template.Must(template.New("expert_suggestions").Parse(`وجدنا لك {{.Count}} خبراء متخصصين في {{.ServiceName}}. اضغط لمشاهدة التفاصيل.`)),
	}
)

type templateVars struct {
	CustomerName string
	ExpertName   string
	ServiceName  string
	Count        int
}

func (t messageTemplate) render(vars templateVars) (string, string, error) {
	var buf bytes.Buffer
	if err := t.body.Execute(&buf, vars); err != nil {
		return "", "", err
	}
	return t.title, buf.String(), nil
}

// ExpertFollowupMessage asks the expert whether a deal was reached
func ExpertFollowupMessage(contact *models.ContactRequest, customerName string) (Message, error) {
	title, body, err := expertFollowupTmpl.render(templateVars{CustomerName: customerName})
	if err != nil {
		return Message{}, err
	}
	return Message{
		RecipientID: contact.ExpertID,
		Title:       title,
		Body:        body,
		Data: map[string]string{
			"type":      string(models.NotificationExpertFollowup),
			"contactId": contact.ID.Hex(),
			"action":    ActionConfirmDeal,
		},
	}, nil
}

// CustomerFollowupMessage relays the expert's answer to the customer
func CustomerFollowupMessage(contact *models.ContactRequest, expertName string, hasDeal bool) (Message, error) {
	tmpl, action := customerNoDealTmpl, ActionConfirmNoDeal
	if hasDeal {
		tmpl, action = customerDealTmpl, ActionProvideDate
	}
	title, body, err := tmpl.render(templateVars{ExpertName: expertName})
	if err != nil {
		return Message{}, err
	}
	return Message{
		RecipientID: contact.CustomerID,
		Title:       title,
		Body:        body,
		Data: map[string]string{
			"type":      string(models.NotificationCustomerFollowup),
			"contactId": contact.ID.Hex(),
			"action":    action,
			"hasDeal":   strconv.FormatBool(hasDeal),
		},
	}, nil
}

// ReviewRequestMessage asks the customer to rate the expert
func ReviewRequestMessage(contact *models.ContactRequest, expertName string) (Message, error) {
	title, body, err := reviewRequestTmpl.render(templateVars{ExpertName: expertName})
	if err != nil {
		return Message{}, err
	}
	return Message{
		RecipientID: contact.CustomerID,
		Title:       title,
		Body:        body,
		Data: map[string]string{
			"type":      string(models.NotificationReviewRequest),
			"contactId": contact.ID.Hex(),
			"expertId":  contact.ExpertID.Hex(),
			"action":    ActionRateExpert,
		},
	}, nil
}

// SuggestionsMessage announces experts matching the user's last search
func SuggestionsMessage(recipient *models.User, service *models.Service, serviceName string, expertIDs string, count int) (Message, error) {
	title, body, err := suggestionsTmpl.render(templateVars{ServiceName: serviceName, Count: count})
	if err != nil {
		return Message{}, err
	}
	data := map[string]string{
		"type":      string(models.NotificationExpertSuggestions),
		"expertIds": expertIDs,
		"action":    ActionViewExperts,
	}
	msg := Message{
		RecipientID: recipient.ID,
		Title:       title,
		Body:        body,
		Data:        data,
		PushToken:   recipient.FCMToken,
	}
	if recipient.LastSearch != nil {
		if recipient.LastSearch.Service != nil {
			data["serviceId"] = recipient.LastSearch.Service.Hex()
		}
		if recipient.LastSearch.SubService != nil {
			data["subServiceId"] = recipient.LastSearch.SubService.Hex()
		}
	}
	if service != nil {
		msg.ImageURL = service.Icon
	}
	return msg, nil
}
