package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

// TicketView is the data rendered into ticket emails.
type TicketView struct {
	ID       int64
	Title    string
	Category string
	Priority string
	Status   string
	Link     string
}

var templates = template.Must(template.New("mail").Parse(`
{{define "created"}}<h2>Ticket Created Successfully</h2>
<p>Your ticket "{{.Title}}" has been created.</p>
<p>You can track its progress by clicking <a href="{{.Link}}">here</a>.</p>{{end}}
{{define "status"}}<h2>Ticket Status Update</h2>
<p>Your ticket "{{.Title}}" has been updated.</p>
<p><strong>New Status:</strong> {{.Status}}</p>
<p>You can view the ticket details by clicking <a href="{{.Link}}">here</a>.</p>{{end}}
{{define "comment"}}<h2>New Comment on Your Ticket</h2>
<p>A new comment has been added to your ticket "{{.Title}}".</p>
<p>You can view the comment by clicking <a href="{{.Link}}">here</a>.</p>{{end}}
{{define "admin"}}<h2>New Ticket Created</h2>
<p>A new ticket has been created and requires attention.</p>
<p><strong>Ticket Details:</strong></p>
<ul>
<li>Title: {{.Title}}</li>
<li>Category: {{.Category}}</li>
<li>Priority: {{.Priority}}</li>
</ul>
<p>You can view the ticket by clicking <a href="{{.Link}}">here</a>.</p>{{end}}
`))

func render(name string, v TicketView) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, v); err != nil {
		return "", fmt.Errorf("render %s mail: %w", name, err)
	}
	return buf.String(), nil
}

// TicketCreated is sent to the ticket owner.
func TicketCreated(to string, v TicketView) (Message, error) {
	body, err := render("created", v)
	return Message{To: []string{to}, Subject: fmt.Sprintf("New Ticket Created #%d", v.ID), HTML: body}, err
}

// TicketStatusChanged is sent to the ticket owner.
func TicketStatusChanged(to string, v TicketView) (Message, error) {
	body, err := render("status", v)
	return Message{To: []string{to}, Subject: fmt.Sprintf("Ticket #%d Status Update", v.ID), HTML: body}, err
}

// TicketCommented is sent to the ticket owner.
func TicketCommented(to string, v TicketView) (Message, error) {
	body, err := render("comment", v)
	return Message{To: []string{to}, Subject: fmt.Sprintf("New Comment on Ticket #%d", v.ID), HTML: body}, err
}

// AdminTicketCreated is sent once to all admin addresses.
func AdminTicketCreated(to []string, v TicketView) (Message, error) {
	body, err := render("admin", v)
	return Message{To: to, Subject: fmt.Sprintf("New Ticket Created #%d", v.ID), HTML: body}, err
}
