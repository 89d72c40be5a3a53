package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_English(t *testing.T) {
	c, err := Load("en")
	require.NoError(t, err)
	assert.Equal(t, "en", c.Lang())
	assert.Equal(t, "No pending applications found.", c.T("bank.queue_empty"))
	assert.Equal(t, "Sign & Approve", c.T("bank.confirm_approve"))
	assert.Equal(t, "Welcome, Aziz", c.T("farmer.welcome", "Aziz"))
}

func TestLoad_EmptyIsFallback(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Fallback, c.Lang())
}

func TestLoad_Unknown(t *testing.T) {
	_, err := Load("xx")
	require.Error(t, err)
}

func TestT_MissingKeyReturnsKey(t *testing.T) {
	c := MustLoad("en")
	assert.Equal(t, "no.such.key", c.T("no.such.key"))
	assert.False(t, c.Has("no.such.key"))
}

func TestRussian_TranslatesAndFallsBack(t *testing.T) {
	ru := MustLoad("ru")
	assert.Equal(t, "Ошибка оплаты", ru.T("alert.payment_failed"))
	assert.Equal(t, "AgroCredit AI", ru.T("app.name"))
}

// Every locale must define every English key so screens never mix languages.
func TestLocales_CompleteAgainstFallback(t *testing.T) {
	en, err := readLocale(Fallback)
	require.NoError(t, err)

	for _, lang := range Languages() {
		t.Run(lang, func(t *testing.T) {
			own, err := readLocale(lang)
			require.NoError(t, err)
			for key := range en {
				assert.Contains(t, own, key)
			}
		})
	}
}

func TestLanguages(t *testing.T) {
	assert.Equal(t, []string{"en", "ru"}, Languages())
}
