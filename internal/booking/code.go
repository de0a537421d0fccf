package booking

import (
	"strings"

	"github.com/google/uuid"
)

// NewTicketCode returns a unique machine-readable ticket code.
func NewTicketCode() string {
	return "TICKET-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
