package notifications

import (
	"bytes"
	"html/template"

	"vetcare-backend/internal/appointments"
)

const bookingReceivedTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hi {{.OwnerName}},</p>
  <p>We received your appointment request. Here are the details:</p>
  <ul>
    <li>Pet: {{.PetName}} ({{.AnimalType}})</li>
    <li>Service: {{.Service}}</li>
    <li>Date: {{.Date}}</li>
    <li>Time: {{.Time}}</li>
    <li>Reference: {{.AppointmentID}}</li>
  </ul>
  <p>The clinic will review your request shortly. You will get another email
  once it is approved or declined.</p>
  <p>Thank you.</p>
</body>
</html>`

const decisionTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hi {{.OwnerName}},</p>
  {{if .Approved}}
  <p>Your appointment for {{.PetName}} has been <strong>approved</strong>.</p>
  <ul>
    <li>Service: {{.Service}}</li>
    <li>Date: {{.Date}}</li>
    <li>Time: {{.Time}}</li>
  </ul>
  <p>Please arrive a few minutes early with your pet's records if you have them.</p>
  {{else}}
  <p>Unfortunately your appointment request for {{.PetName}} on {{.Date}}
  at {{.Time}} was <strong>declined</strong>.</p>
  {{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
  <p>You are welcome to book another slot in the app.</p>
  {{end}}
  <p>Thank you.</p>
</body>
</html>`

const passwordResetTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hi {{.Name}},</p>
  <p>Your password reset code is:</p>
  <p style="font-size:24px;letter-spacing:4px;"><strong>{{.Code}}</strong></p>
  <p>The code expires in a few minutes and can be used once. If you did not
  request a reset, you can ignore this email.</p>
</body>
</html>`

var (
	bookingReceivedTmpl = template.Must(template.New("booking_received").Parse(bookingReceivedTemplate))
	decisionTmpl        = template.Must(template.New("appointment_decision").Parse(decisionTemplate))
	passwordResetTmpl   = template.Must(template.New("password_reset").Parse(passwordResetTemplate))
)

type bookingEmailData struct {
	OwnerName     string
	PetName       string
	AnimalType    string
	Service       string
	Date          string
	Time          string
	AppointmentID string
	Approved      bool
	Reason        string
}

func buildBookingReceivedHTML(appointment appointments.Appointment) (string, error) {
	return renderTemplate(bookingReceivedTmpl, bookingEmailData{
		OwnerName:     appointment.OwnerName,
		PetName:       appointment.PetName,
		AnimalType:    appointment.AnimalType,
		Service:       appointment.Service,
		Date:          appointment.Date,
		Time:          appointment.Time,
		AppointmentID: appointment.ID,
	})
}

func buildDecisionHTML(appointment appointments.Appointment) (string, error) {
	return renderTemplate(decisionTmpl, bookingEmailData{
		OwnerName: appointment.OwnerName,
		PetName:   appointment.PetName,
		Service:   appointment.Service,
		Date:      appointment.Date,
		Time:      appointment.Time,
		Approved:  appointment.Status == appointments.StatusApproved,
		Reason:    appointment.DeclineNotes,
	})
}

type passwordResetData struct {
	Name string
	Code string
}

func buildPasswordResetHTML(name, code string) (string, error) {
	return renderTemplate(passwordResetTmpl, passwordResetData{Name: name, Code: code})
}

func renderTemplate(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
