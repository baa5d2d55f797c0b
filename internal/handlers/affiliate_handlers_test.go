package handlers

import (
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T, target string, headers map[string]string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", target, nil)
	for k, v := range headers {
		c.Request.Header.Set(k, v)
	}
	return c
}

func TestExtractAffiliateCodeBodyWins(t *testing.T) {
	c := testContext(t, "/orders?ref=from-query", map[string]string{
		"X-Affiliate-Code": "from-header",
	})

	assert.Equal(t, "from-body", extractAffiliateCode(c, "from-body"))
}

func TestExtractAffiliateCodeQueryBeatsHeader(t *testing.T) {
	c := testContext(t, "/orders?ref=from-query", map[string]string{
		"X-Affiliate-Code": "from-header",
	})

	assert.Equal(t, "from-query", extractAffiliateCode(c, ""))
}

func TestExtractAffiliateCodeHeaderFallback(t *testing.T) {
	c := testContext(t, "/orders", map[string]string{
		"X-Affiliate-Code": "from-header",
	})

	assert.Equal(t, "from-header", extractAffiliateCode(c, ""))
}

func TestExtractAffiliateCodeAbsent(t *testing.T) {
	c := testContext(t, "/orders", nil)
	assert.Equal(t, "", extractAffiliateCode(c, ""))
}

func TestGenerateAffiliateCode(t *testing.T) {
	code, err := generateAffiliateCode()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}$`), code)

	other, err := generateAffiliateCode()
	require.NoError(t, err)
	assert.NotEqual(t, code, other)
}
