package mailer

import (
	"fmt"
	"strings"
	"text/template"
)

// 各通知メールの件名。
const (
	subjectVerification = "Confirm your NESA-Africa endorsement"
	subjectApproval     = "Your NESA-Africa endorsement has been approved"
	subjectRejection    = "Update on your NESA-Africa endorsement"
)

// verificationData は確認メールテンプレートの入力。
type verificationData struct {
	ContactPerson    string
	OrganizationName string
	VerifyLink       string
	Token            string
}

// decisionData は承認・却下メールテンプレートの入力。
type decisionData struct {
	ContactPerson    string
	OrganizationName string
	Reason           string
}

var verificationTmpl = template.Must(template.New("verification").Parse(
	`Dear {{.ContactPerson}},

Thank you for submitting an endorsement on behalf of {{.OrganizationName}}.

Please confirm your email address to move your endorsement into review:

{{.VerifyLink}}

If the link does not work, use this verification code: {{.Token}}

The link expires in 24 hours. If you did not submit this endorsement, you can ignore this message.

NESA-Africa
`))

var approvalTmpl = template.Must(template.New("approval").Parse(
	`Dear {{.ContactPerson}},

Great news! The endorsement submitted by {{.OrganizationName}} has been approved and is now visible on the NESA-Africa endorsement showcase.

Thank you for supporting the awards program.

NESA-Africa
`))

var rejectionTmpl = template.Must(template.New("rejection").Parse(
	`Dear {{.ContactPerson}},

We reviewed the endorsement submitted by {{.OrganizationName}} and were unable to approve it.

Reason: {{.Reason}}

You are welcome to contact us if you believe this decision was made in error.

NESA-Africa
`))

// renderTemplate はテンプレートを実行して本文を返す。
func renderTemplate(tmpl *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", tmpl.Name(), err)
	}
	return sb.String(), nil
}
