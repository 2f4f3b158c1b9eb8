package mail

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// RenderAttendeeEmail returns the HTML body of an organizer message sent to
// the attendees of one event. body is plain text; it is escaped and its
// newlines become <br> tags.
func RenderAttendeeEmail(orgName, eventTitle string, eventStart time.Time, subject, body string) string {
	htmlBody := strings.ReplaceAll(html.EscapeString(body), "\n", "<br>")

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>%s</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #f4f5f7; }
    .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
    .header { background: #1f6feb; padding: 32px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 22px; font-weight: 700; }
    .event { padding: 16px 30px 0; color: #57606a; font-size: 13px; }
    .content { padding: 24px 30px 40px; color: #24292f; line-height: 1.6; font-size: 15px; }
    .footer { padding: 24px; text-align: center; color: #8c959f; font-size: 12px; border-top: 1px solid #d0d7de; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>%s</h1>
    </div>
    <div class="event">%s &middot; %s</div>
    <div class="content">%s</div>
    <div class="footer">You are receiving this because you checked in to an event organized by %s.</div>
  </div>
</body>
</html>`,
		html.EscapeString(subject),
		html.EscapeString(subject),
		html.EscapeString(eventTitle),
		eventStart.UTC().Format("Mon, 02 Jan 2006 15:04 MST"),
		htmlBody,
		html.EscapeString(orgName),
	)
}
