package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"lectoria/internal/email"
)

func TestLecturePageSanitizesContent(t *testing.T) {
	server, database, _ := newTestServer(t)
	createLecture(t, database, "Intro to Beekeeping", "intro-to-beekeeping", true)

	// Poison the stored content directly.
	if _, err := database.Exec(`UPDATE lectures SET content = '<p>ok</p><script>alert(1)</script>'`); err != nil {
		t.Fatalf("updating content: %v", err)
	}

	rr := get(server, "/lectures/intro-to-beekeeping", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%q", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "<script>") {
		t.Fatal("script tag survived sanitization")
	}
	if !strings.Contains(rr.Body.String(), "ok") {
		t.Fatal("safe markup was stripped")
	}
}

func TestLecturePageNotFoundForInactive(t *testing.T) {
	server, database, _ := newTestServer(t)
	createLecture(t, database, "Hidden", "hidden", false)

	rr := get(server, "/lectures/hidden", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	if code := errorCode(t, rr); code != ErrCodeNotFound {
		t.Fatalf("error code = %q, want %q", code, ErrCodeNotFound)
	}
}

func TestOrderFormFlow(t *testing.T) {
	server, database, mailer := newTestServer(t)
	lecture := createLecture(t, database, "Intro to Beekeeping", "intro-to-beekeeping", true)

	form := url.Values{
		"name":  {"Bob Jones"},
		"email": {"bob@example.com"},
		"phone": {"555-0100"},
	}
	rr := postForm(server, "/order/"+lecture.ID, form, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body=%q", rr.Code, rr.Body.String())
	}

	var resp struct {
		AccountCreated   bool `json:"accountCreated"`
		NotificationSent bool `json:"notificationSent"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if !resp.AccountCreated || !resp.NotificationSent {
		t.Fatalf("accountCreated=%v notificationSent=%v, want both true", resp.AccountCreated, resp.NotificationSent)
	}

	d := mailer.byTemplate(email.TemplateOrderConfirmationNewUser)
	if d == nil {
		t.Fatal("no new-user confirmation email delivered")
	}
	confirmURL := d.vars["ConfirmURL"].(string)
	token := strings.TrimPrefix(confirmURL, "https://example.com/order/confirm/")

	rr = get(server, "/order/confirm/"+token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, body=%q", rr.Code, rr.Body.String())
	}

	// Second redemption must fail.
	rr = get(server, "/order/confirm/"+token, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("second confirm status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if code := errorCode(t, rr); code != ErrCodeTokenInvalid {
		t.Fatalf("error code = %q, want %q", code, ErrCodeTokenInvalid)
	}
}

func TestOrderFormRejectsBadEmail(t *testing.T) {
	server, database, _ := newTestServer(t)
	lecture := createLecture(t, database, "Intro to Beekeeping", "intro-to-beekeeping", true)

	form := url.Values{
		"name":  {"Bob"},
		"email": {"not-an-address"},
	}
	rr := postForm(server, "/order/"+lecture.ID, form, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body=%q", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr); code != ErrCodeInvalidRequest {
		t.Fatalf("error code = %q, want %q", code, ErrCodeInvalidRequest)
	}
}

func TestContactFormCaptcha(t *testing.T) {
	server, _, mailer := newTestServer(t)

	form := url.Values{
		"name":           {"Bob"},
		"email":          {"bob@example.com"},
		"message":        {"Hello"},
		"captcha_x":      {"3"},
		"captcha_y":      {"4"},
		"captcha_answer": {"8"},
	}
	rr := postForm(server, "/contact-form", form, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("wrong answer status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	form.Set("captcha_answer", "7")
	rr = postForm(server, "/contact-form", form, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%q", rr.Code, rr.Body.String())
	}
	if mailer.byTemplate(email.TemplateContactAdminAlert) == nil {
		t.Fatal("operator alert not delivered")
	}
	if mailer.byTemplate(email.TemplateContactConfirmation) == nil {
		t.Fatal("sender confirmation not delivered")
	}
}

func TestSitemapAndRobotsAndFeed(t *testing.T) {
	server, database, _ := newTestServer(t)
	createLecture(t, database, "Bees & Trees", "bees-and-trees", true)

	rr := get(server, "/sitemap.xml", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("sitemap status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "https://example.com/lectures/bees-and-trees") {
		t.Fatalf("sitemap missing lecture URL:\n%s", rr.Body.String())
	}

	rr = get(server, "/robots.txt", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("robots status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Sitemap: https://example.com/sitemap.xml") {
		t.Fatalf("robots missing sitemap line:\n%s", rr.Body.String())
	}

	rr = get(server, "/feed.xml", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("feed status = %d", rr.Code)
	}
	// Titles are XML-escaped.
	if !strings.Contains(rr.Body.String(), "Bees &amp; Trees") {
		t.Fatalf("feed missing escaped title:\n%s", rr.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	server, _, _ := newTestServer(t)

	rr := get(server, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}
