// Package notify delivers Golden Signature approvals to webhook targets:
// Slack, Microsoft Teams, or a generic HTTP endpoint receiving JSON.
package notify
