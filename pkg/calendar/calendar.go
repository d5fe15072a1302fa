package calendar

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/savaki/linebot-assistant/pkg/models"
)

const templateEndpoint = "https://calendar.google.com/calendar/render"

// ErrInvalidURL is returned when a built or supplied link is not an absolute http(s) URL
var ErrInvalidURL = errors.New("calendar: invalid url")

// Google Calendar accepts "start/end" as timed (YYYYMMDDTHHMMSS, optional Z)
// or all-day (YYYYMMDD) values.
var datesPattern = regexp.MustCompile(`^(\d{8}(T\d{6}Z?)?)/(\d{8}(T\d{6}Z?)?)$`)

// IsValidURL reports whether s is an absolute http or https URL with a host
func IsValidURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return false
	}
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// BuildURL returns a Google Calendar "add event" link for the details.
// The dates parameter is only set when Time is a recognised range.
func BuildURL(d models.EventDetails) string {
	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", strings.TrimSpace(d.Title))
	if dates, ok := NormalizeDates(d.Time); ok {
		q.Set("dates", dates)
	}
	if loc := strings.TrimSpace(d.Location); loc != "" {
		q.Set("location", loc)
	}
	if details := strings.TrimSpace(d.Content); details != "" {
		q.Set("details", details)
	}
	return templateEndpoint + "?" + q.Encode()
}

// NormalizeDates cleans up an extracted time range into the calendar's
// dates format. A single timestamp becomes a zero-length range and a
// single day becomes an all-day event.
func NormalizeDates(raw string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "", ":", "", " ", "").Replace(s)
	if s == "" {
		return "", false
	}
	if !strings.Contains(s, "/") {
		end := s
		if day, err := time.Parse("20060102", s); err == nil {
			end = day.AddDate(0, 0, 1).Format("20060102")
		}
		s = s + "/" + end
	}
	if !datesPattern.MatchString(s) {
		return "", false
	}
	return s, true
}
