package validation

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateClientContentType(t *testing.T) {
	assert.NoError(t, ValidateClientContentType("", "csv"))
	assert.NoError(t, ValidateClientContentType("text/csv; charset=utf-8", "csv"))
	assert.NoError(t, ValidateClientContentType("application/json", "JSON"))
	assert.Error(t, ValidateClientContentType("application/json", "csv"))
	assert.Error(t, ValidateClientContentType("image/png", "json"))
	assert.Error(t, ValidateClientContentType("text/plain", "xml"))
}

func TestValidateFileContentByMagicBytes(t *testing.T) {
	r := bytes.NewReader([]byte(`[{"kind":"signal"}]`))
	detected, err := ValidateFileContentByMagicBytes(r)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", detected)

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, `[{"kind":"signal"}]`, string(rest), "reader is rewound")

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	_, err = ValidateFileContentByMagicBytes(bytes.NewReader(png))
	assert.Error(t, err)

	_, err = ValidateFileContentByMagicBytes(nil)
	assert.Error(t, err)
}

func TestSanitizers(t *testing.T) {
	assert.Equal(t, "'=SUM(A1)", SanitizeForFormulaInjection("=SUM(A1)"))
	assert.Equal(t, "'-4.2", SanitizeForFormulaInjection("-4.2"))
	assert.Equal(t, "BTC", SanitizeForFormulaInjection("BTC"))
	assert.Equal(t, "'  @cmd", SanitizeForFormulaInjection("  @cmd"), "leading spaces are kept")
	assert.Equal(t, "'\tBTC", SanitizeForFormulaInjection("\tBTC"))
	assert.Equal(t, "", SanitizeForFormulaInjection(""))
	assert.Equal(t, "   ", SanitizeForFormulaInjection("   "))

	assert.Equal(t, "BTCUSDT", StripUnprintable("BTC\x00USDT"))
	assert.Equal(t, "BTC / USDT +2.5%", CleanOCRText("  BTC\u200b /\n\tUSDT   +2.5%  "))
}
