// Package render turns a message template and one recipient into the
// final message body. Substitution is literal find/replace over plain
// text: no loops, no conditionals, no escaping.
package render

import (
	"strings"
	"time"

	"github.com/LeventeLantos/campaign-manager/internal/model"
)

// Two placeholder vocabularies are supported at the same time. The short
// form is current; the double-brace form is kept for templates written
// against the old syntax. The spellings never collide, so both passes
// can run unconditionally.
const (
	tokenName  = "{name}"
	tokenLast  = "{last}"
	tokenFull  = "{full}"
	tokenPhone = "{phone}"
	tokenEmail = "{email}"
	tokenDate  = "{date}"
	tokenTime  = "{time}"

	legacyFirstName = "{{firstName}}"
	legacyLastName  = "{{lastName}}"
	legacyFullName  = "{{fullName}}"
	legacyPhone     = "{{phoneNumber}}"
	legacyEmail     = "{{email}}"
	legacyDate      = "{{currentDate}}"
	legacyTime      = "{{currentTime}}"
)

const (
	dateFormat = "Jan 2, 2006"
	timeFormat = "3:04 PM"
)

// Render substitutes all placeholder tokens using wall-clock time for
// {date}/{time}. Missing attributes become the empty string.
func Render(template string, c *model.Contact) string {
	return RenderAt(template, c, time.Now())
}

// RenderAt is Render with a fixed instant; it is pure and safe to call
// concurrently. Rendering the same template at two different instants
// may differ in the date/time tokens, which is expected.
func RenderAt(template string, c *model.Contact, now time.Time) string {
	r := strings.NewReplacer(
		legacyFirstName, c.FirstName,
		legacyLastName, c.LastName,
		legacyFullName, c.DisplayName(),
		legacyPhone, c.Phone,
		legacyEmail, c.Email,
		legacyDate, now.Format(dateFormat),
		legacyTime, now.Format(timeFormat),

		tokenName, c.FirstName,
		tokenLast, c.LastName,
		tokenFull, c.DisplayName(),
		tokenPhone, c.Phone,
		tokenEmail, c.Email,
		tokenDate, now.Format(dateFormat),
		tokenTime, now.Format(timeFormat),
	)
	return r.Replace(template)
}
