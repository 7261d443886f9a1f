package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// orderNumberPrefix marks freeze-dry processing orders
const orderNumberPrefix = "FD"

// NewOrderNumber generates a human-readable order number of the form
// FD-20260901-3F2A9C1B: a date component for operators plus a random suffix
// for collision resistance. Callers must still verify uniqueness against the
// store before committing.
func NewOrderNumber() string {
	datePart := time.Now().UTC().Format("20060102")
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", orderNumberPrefix, datePart, suffix)
}
