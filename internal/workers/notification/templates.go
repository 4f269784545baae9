package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"leadflow/internal/models"
)

const DefaultBrand = "Lead Agent"

var (
	successTemplate = template.Must(template.New("success").Parse(successHTML))
	failureTemplate = template.Must(template.New("failure").Parse(failureHTML))
)

type leadView struct {
	Name         string
	Phone        string
	Location     string
	PropertyType string
	Bedrooms     string
	Budget       string
	TeamID       string
	Projects     []string
	CRMStatus    string
	Error        string
	Brand        string
	GeneratedAt  string
}

func or(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func newLeadView(lead models.LeadInfo, brand string, now time.Time) leadView {
	budget := ""
	if lead.Budget > 0 {
		budget = strconv.FormatInt(lead.Budget, 10)
	}
	return leadView{
		Name:         lead.FullName(),
		Phone:        or(lead.Phone, "Not provided"),
		Location:     or(lead.Location, "Not provided"),
		PropertyType: or(lead.PropertyType, "Not specified"),
		Bedrooms:     or(lead.Bedrooms, "Not specified"),
		Budget:       or(budget, "Not specified"),
		TeamID:       lead.TeamID,
		Projects:     lead.MatchedProjects,
		Brand:        or(brand, DefaultBrand),
		GeneratedAt:  now.UTC().Format("2006-01-02 15:04:05"),
	}
}

func crmStatus(lead models.LeadInfo) string {
	if lead.CRM == nil {
		return "Successfully added to CRM"
	}
	if lead.CRM.Message != "" {
		return lead.CRM.Message
	}
	return fmt.Sprintf("Successfully added to %s CRM", lead.CRM.Provider)
}

// Subject is the email subject for a run outcome.
func Subject(lead models.LeadInfo, success bool) string {
	name := lead.FirstName + " " + lead.LastName
	if success {
		return "✅ New Lead Processed Successfully - " + name
	}
	return "❌ Lead Processing Failed - " + name
}

// Render builds the HTML and plain-text forms of a lead notification.
func Render(to string, lead models.LeadInfo, success bool, errorMessage, brand string, now time.Time) (models.Notification, error) {
	view := newLeadView(lead, brand, now)
	tmpl := successTemplate
	if success {
		view.CRMStatus = crmStatus(lead)
	} else {
		view.Error = or(errorMessage, "Unknown error")
		tmpl = failureTemplate
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view); err != nil {
		return models.Notification{}, fmt.Errorf("render %s template: %w", tmpl.Name(), err)
	}

	return models.Notification{
		To:       to,
		Subject:  Subject(lead, success),
		HTMLBody: buf.String(),
		TextBody: renderText(view, success),
	}, nil
}

// renderText is the short form used for SMS and plain-text parts.
func renderText(v leadView, success bool) string {
	if success {
		projects := "none"
		if len(v.Projects) > 0 {
			projects = strings.Join(v.Projects, ", ")
		}
		return fmt.Sprintf("New lead: %s, %s, %s in %s, budget %s. Matches: %s",
			or(v.Name, "Unknown"), v.Phone, v.PropertyType, v.Location, v.Budget, projects)
	}
	return fmt.Sprintf("Lead processing failed for %s: %s", or(v.Name, "Unknown"), v.Error)
}

const leadInfoHTML = `
            <ul>
                <li><strong>Name:</strong> {{.Name}}</li>
                <li><strong>Phone:</strong> {{.Phone}}</li>
                <li><strong>Location:</strong> {{.Location}}</li>
                <li><strong>Property Type:</strong> {{.PropertyType}}</li>
                <li><strong>Bedrooms:</strong> {{.Bedrooms}}</li>
                <li><strong>Budget:</strong> {{.Budget}}</li>
            </ul>`

const footerHTML = `
        <hr style="margin: 30px 0;">
        <p style="color: #6c757d; font-size: 12px;">
            This is an automated notification from {{.Brand}}.<br>
            Generated at {{.GeneratedAt}} UTC
        </p>`

const successHTML = `<html>
    <body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
        <h2 style="color: #28a745;">✅ New Lead Successfully Processed</h2>
        <div style="background-color: #f8f9fa; padding: 20px; border-radius: 8px; margin: 20px 0;">
            <h3>Lead Information:</h3>` + leadInfoHTML + `
        </div>
        <div style="background-color: #e7f3ff; padding: 20px; border-radius: 8px; margin: 20px 0;">
            <h3>Matched Projects:</h3>
            <ul>
                {{range .Projects}}<li>{{.}}</li>{{else}}<li>No matching projects found</li>{{end}}
            </ul>
        </div>
        <div style="background-color: #d4edda; padding: 15px; border-radius: 8px; margin: 20px 0;">
            <p><strong>CRM Status:</strong> {{.CRMStatus}}</p>
            <p><strong>Team ID:</strong> {{.TeamID}}</p>
        </div>` + footerHTML + `
    </body>
</html>`

const failureHTML = `<html>
    <body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
        <h2 style="color: #dc3545;">❌ Lead Processing Failed</h2>
        <div style="background-color: #f8d7da; padding: 20px; border-radius: 8px; margin: 20px 0; border-left: 4px solid #dc3545;">
            <h3>Error Details:</h3>
            <p><strong>Error:</strong> {{.Error}}</p>
            <p><strong>Team ID:</strong> {{.TeamID}}</p>
        </div>
        <div style="background-color: #f8f9fa; padding: 20px; border-radius: 8px; margin: 20px 0;">
            <h3>Lead Information (for manual processing):</h3>` + leadInfoHTML + `
        </div>
        <div style="background-color: #fff3cd; padding: 15px; border-radius: 8px; margin: 20px 0;">
            <p><strong>Action Required:</strong> Please manually add this lead to your CRM system.</p>
        </div>` + footerHTML + `
    </body>
</html>`
