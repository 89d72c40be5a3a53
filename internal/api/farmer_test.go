package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrocredit/agrolend/internal/domain"
)

// ─── Home ───────────────────────────────────────────────────────────────────

func TestFarmerHome_RendersSummary(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, domain.RoleFarmer)

	doc := page(t, env.get(t, "/farmer/home", cookie))
	assert.Equal(t, "$4,500", doc.Find(".total-debt").Text())
	assert.Equal(t, "720", doc.Find(".credit-score").Text())
	assert.Equal(t, 1, doc.Find(".meter-water").Length())
	assert.Equal(t, "Irrigate early", doc.Find(".recommendation h3").Text())
	assert.Equal(t, "1", doc.Find("#bell-count").Text())
	assert.Zero(t, doc.Find(".loading").Length(), "home renders after its group settles")
}

func TestFarmerHome_AnyFailureFailsTheGroup(t *testing.T) {
	env := newTestEnv(t)
	env.api.fail("GET /api/farmers/utilities", http.StatusInternalServerError)
	cookie := env.login(t, domain.RoleFarmer)

	doc := page(t, env.get(t, "/farmer/home", cookie))
	assert.Equal(t, 1, doc.Find("p.failed").Length())
	assert.Zero(t, doc.Find(".summary").Length())
	assert.Zero(t, doc.Find(".loading").Length())
}

// ─── Bell ───────────────────────────────────────────────────────────────────

func TestBell_MalformedNotificationsShowZero(t *testing.T) {
	for _, body := range []string{`{"unexpected":true}`, `null`, `"oops"`} {
		t.Run(body, func(t *testing.T) {
			env := newTestEnv(t)
			env.api.set("GET /api/farmers/notifications", body)
			cookie := env.login(t, domain.RoleFarmer)

			resp := env.get(t, "/farmer/notifications", cookie)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			doc := page(t, resp)
			bell := doc.Find("#bell-count")
			assert.Equal(t, "0", bell.Text())
			_, hidden := bell.Attr("hidden")
			assert.True(t, hidden)
			assert.Equal(t, 1, doc.Find("div.empty").Length())
		})
	}
}

func TestNotifications_ListsAll(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, domain.RoleFarmer)

	doc := page(t, env.get(t, "/farmer/notifications", cookie))
	assert.Equal(t, 2, doc.Find("li.notification").Length())
	assert.Equal(t, 1, doc.Find("li.notification-alert").Length())
}

// ─── Loans ──────────────────────────────────────────────────────────────────

func TestLoans_ActionsFollowStatus(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, domain.RoleFarmer)

	doc := page(t, env.get(t, "/farmer/loans", cookie))
	assert.Equal(t, "/farmer/loans/live", doc.Find("#loan-list").AttrOr("data-live", ""))

	active := doc.Find(`article.credit[data-loan-id="7"]`)
	assert.Equal(t, 1, active.Find("button.pay").Length())
	assert.Zero(t, active.Find("button.sign").Length())
	assert.Equal(t, "$450", active.Find(".next-payment").Text())
	assert.Equal(t, "10%", active.Find(".pct").Text())

	waiting := doc.Find(`article.credit[data-loan-id="8"]`)
	assert.Equal(t, 1, waiting.Find("button.sign").Length())
	assert.Zero(t, waiting.Find("button.pay").Length())

	pending := doc.Find(`article.credit[data-loan-id="9"]`)
	assert.Equal(t, 1, pending.Find(".under-review").Length())
	assert.Zero(t, pending.Find("button").Length())
}

func TestLoans_Empty(t *testing.T) {
	env := newTestEnv(t)
	env.api.set("GET /api/farmers/loans", `[]`)
	cookie := env.login(t, domain.RoleFarmer)

	doc := page(t, env.get(t, "/farmer/loans", cookie))
	assert.Equal(t, "No active credits", doc.Find("#loan-list p.empty").Text())
	assert.Zero(t, doc.Find("article.credit").Length())
}

// openModal posts to an open route and returns the modal token.
func openModal(t *testing.T, env *testEnv, cookie *http.Cookie, path, param string) string {
	t.Helper()
	loc := location(t, env.post(t, path, cookie, nil))
	require.Equal(t, "/farmer/loans", loc.Path)
	token := loc.Query().Get(param)
	require.NotEmpty(t, token)
	return token
}

func TestSign_ConfirmOnce(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, domain.RoleFarmer)

	token := openModal(t, env, cookie, "/farmer/loans/8/sign/open", "sign")
	assert.Empty(t, env.api.called("POST /api/farmers/loans/8"), "opening makes no call")

	doc := page(t, env.get(t, "/farmer/loans?sign="+token, cookie))
	modal := doc.Find("#sign-modal")
	require.Equal(t, 1, modal.Length())
	assert.Equal(t, "8", modal.AttrOr("data-loan-id", ""))

	resp := env.post(t, "/farmer/loans/8/sign", cookie, url.Values{"token": {token}})
	assert.Equal(t, "signed", location(t, resp).Query().Get("notice"))
	assert.Equal(t, []string{"POST /api/farmers/loans/8/sign"}, env.api.called("POST /api/farmers/loans/8"))

	resp = env.post(t, "/farmer/loans/8/sign", cookie, url.Values{"token": {token}})
	assert.Equal(t, "preview_invalid", location(t, resp).Query().Get("alert"))
	assert.Len(t, env.api.called("POST /api/farmers/loans/8"), 1)
}

func TestSign_TokenBoundToLoan(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, domain.RoleFarmer)

	token := openModal(t, env, cookie, "/farmer/loans/8/sign/open", "sign")
	resp := env.post(t, "/farmer/loans/7/sign", cookie, url.Values{"token": {token}})
	assert.Equal(t, "preview_invalid", location(t, resp).Query().Get("alert"))
	assert.Empty(t, env.api.called("POST /api/farmers/loans/"))
}

func TestSign_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.api.fail("POST /api/farmers/loans/8/sign", http.StatusInternalServerError)
	cookie := env.login(t, domain.RoleFarmer)

	token := openModal(t, env, cookie, "/farmer/loans/8/sign/open", "sign")
	resp := env.post(t, "/farmer/loans/8/sign", cookie, url.Values{"token": {token}})
	assert.Equal(t, "sign_failed", location(t, resp).Query().Get("alert"))
}

func TestPay_InvalidAmountKeepsModalOpen(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, domain.RoleFarmer)

	token := openModal(t, env, cookie, "/farmer/loans/7/pay/open", "pay")

	for _, amount := range []string{"", "abc", "0", "-10", "1e-400", "1e400"} {
		resp := env.post(t, "/farmer/loans/7/pay", cookie, url.Values{"token": {token}, "amount": {amount}})
		loc := location(t, resp)
		assert.Equal(t, "invalid_amount", loc.Query().Get("alert"), "amount %q", amount)
		assert.Equal(t, token, loc.Query().Get("pay"), "amount %q", amount)
	}
	assert.Empty(t, env.api.called("POST /api/farmers/loans/7/pay"))

	doc := page(t, env.get(t, "/farmer/loans?pay="+token+"&alert=invalid_amount", cookie))
	assert.Equal(t, "Enter valid amount", doc.Find(".alert").Text())
	assert.Equal(t, 1, doc.Find("#pay-modal").Length(), "modal stays open")

	resp := env.post(t, "/farmer/loans/7/pay", cookie, url.Values{"token": {token}, "amount": {" 150.50 "}})
	assert.Equal(t, "payment_success", location(t, resp).Query().Get("notice"))
	assert.Equal(t, []string{`POST /api/farmers/loans/7/pay {"amount":150.5}`}, env.api.called("POST /api/farmers/loans/7/pay"))
}

func TestPay_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.api.fail("POST /api/farmers/loans/7/pay", http.StatusInternalServerError)
	cookie := env.login(t, domain.RoleFarmer)

	token := openModal(t, env, cookie, "/farmer/loans/7/pay/open", "pay")
	resp := env.post(t, "/farmer/loans/7/pay", cookie, url.Values{"token": {token}, "amount": {"100"}})
	assert.Equal(t, "payment_failed", location(t, resp).Query().Get("alert"))
}

func TestCancel_ClosesModal(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, domain.RoleFarmer)

	token := openModal(t, env, cookie, "/farmer/loans/7/pay/open", "pay")
	resp := env.post(t, "/farmer/previews/"+token+"/cancel", cookie, nil)
	assert.Equal(t, "/farmer/loans", location(t, resp).Path)

	doc := page(t, env.get(t, "/farmer/loans?pay="+token, cookie))
	assert.Zero(t, doc.Find("#pay-modal").Length())
	assert.Equal(t, 1, doc.Find(".alert").Length())

	resp = env.post(t, "/farmer/loans/7/pay", cookie, url.Values{"token": {token}, "amount": {"100"}})
	assert.Equal(t, "preview_invalid", location(t, resp).Query().Get("alert"))
	assert.Empty(t, env.api.called("POST /api/farmers/loans/7/pay"))
}

func TestCancel_OtherSessionCannotCancel(t *testing.T) {
	env := newTestEnv(t)
	owner := env.login(t, domain.RoleFarmer)
	other := env.login(t, domain.RoleFarmer)

	token := openModal(t, env, owner, "/farmer/loans/7/pay/open", "pay")
	env.post(t, "/farmer/previews/"+token+"/cancel", other, nil)

	resp := env.post(t, "/farmer/loans/7/pay", owner, url.Values{"token": {token}, "amount": {"100"}})
	assert.Equal(t, "payment_success", location(t, resp).Query().Get("notice"))
}

// ─── New Application ────────────────────────────────────────────────────────

func TestApplyForm_DefaultsToTwelveMonths(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, domain.RoleFarmer)

	doc := page(t, env.get(t, "/farmer/applications/new", cookie))
	assert.Equal(t, "12", doc.Find(`select[name="term_months"] option[selected]`).AttrOr("value", ""))
	assert.Equal(t, 5, doc.Find(`select[name="term_months"] option`).Length())
}

func TestApplySubmit_Validation(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, domain.RoleFarmer)

	tests := []struct {
		name  string
		form  url.Values
		alert string
	}{
		{"bad amount", url.Values{"amount": {"lots"}, "term_months": {"12"}, "purpose": {"Seeds"}}, "Enter valid amount"},
		{"vanishing amount", url.Values{"amount": {"1e-400"}, "term_months": {"12"}, "purpose": {"Seeds"}}, "Enter valid amount"},
		{"huge amount", url.Values{"amount": {"1e400"}, "term_months": {"12"}, "purpose": {"Seeds"}}, "Enter valid amount"},
		{"bad term", url.Values{"amount": {"5000"}, "term_months": {"7"}, "purpose": {"Seeds"}}, "Choose a loan term"},
		{"blank purpose", url.Values{"amount": {"5000"}, "term_months": {"12"}, "purpose": {"   "}}, "Describe the loan purpose"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.post(t, "/farmer/applications", cookie, tc.form)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			doc := page(t, resp)
			assert.Equal(t, tc.alert, doc.Find(".alert").Text())
			assert.Equal(t, tc.form.Get("amount"), doc.Find(`input[name="amount"]`).AttrOr("value", ""))
		})
	}
	assert.Empty(t, env.api.called("POST /api/farmers/loans"))
}

func TestApplySubmit_CreatesApplication(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, domain.RoleFarmer)

	resp := env.post(t, "/farmer/applications", cookie, url.Values{
		"amount":      {"5000"},
		"term_months": {"12"},
		"purpose":     {"Seeds for spring"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := page(t, resp)
	assert.Equal(t, "Application submitted!", strings.TrimSpace(doc.Find(".submitted h2").Text()))
	assert.Equal(t, []string{`POST /api/farmers/loans {"amount":5000,"term_months":12,"purpose":"Seeds for spring"}`},
		env.api.called("POST /api/farmers/loans"))
}

func TestApplySubmit_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.api.fail("POST /api/farmers/loans", http.StatusServiceUnavailable)
	cookie := env.login(t, domain.RoleFarmer)

	resp := env.post(t, "/farmer/applications", cookie, url.Values{
		"amount":      {"5000"},
		"term_months": {"12"},
		"purpose":     {"Seeds"},
	})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestEstimate_JSON(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, domain.RoleFarmer)

	resp := env.get(t, "/farmer/estimate?amount=12000&term=12", cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Amount     float64 `json:"amount"`
		TermMonths int     `json:"term_months"`
		Monthly    float64 `json:"monthly"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 12000.0, body.Amount)
	assert.Equal(t, 12, body.TermMonths)
	assert.InDelta(t, 1120.0, body.Monthly, 0.001)

	resp = env.get(t, "/farmer/estimate?amount=12000&term=5", cookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ─── Profile ────────────────────────────────────────────────────────────────

func TestProfile(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, domain.RoleFarmer)

	doc := page(t, env.get(t, "/farmer/profile", cookie))
	assert.Equal(t, "Aziz Gofurov", doc.Find(".profile h2").Text())

	env.api.fail("GET /api/farmers/profile", http.StatusNotFound)
	doc = page(t, env.get(t, "/farmer/profile", cookie))
	assert.Equal(t, 1, doc.Find("p.failed").Length())
}
