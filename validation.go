package webmail

import "strings"

// validateSend checks the fields a send needs. A scheduled send only needs
// recipients. to is the already split recipient list.
func validateSend(req SendRequest, to []string) error {
	if len(to) == 0 {
		return &ValidationError{Field: "to", Message: "at least one recipient is required"}
	}
	if req.Scheduled() {
		return nil
	}
	if strings.TrimSpace(req.Subject) == "" {
		return &ValidationError{Field: "subject", Message: "cannot be empty"}
	}
	if strings.TrimSpace(req.HTMLBody) == "" {
		return &ValidationError{Field: "html_body", Message: "cannot be empty"}
	}
	return nil
}
