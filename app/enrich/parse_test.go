package enrich

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEnrichment_FullResponse(t *testing.T) {
	raw := `ENHANCED_CONTENT: Ankara'da meydana gelen deprem sonrası
çalışmalar sürüyor.
SEO_TITLE: Ankara'da Deprem: Son Gelişmeler
META_DESCRIPTION: Ankara'daki depremin ardından son gelişmeler ve uzman değerlendirmeleri.
KEYWORDS: deprem, ankara, afad
HASHTAGS: #deprem, #ankara
HEADINGS: Son Durum, Uzman Görüşleri
BULLETS: - Artçı sarsıntılar sürüyor
- Hasar tespiti başladı
CTA: Gelişmeler için sayfayı takip edin.`

	e := ParseEnrichment(raw)

	assert.Contains(t, e.EnhancedContent, "çalışmalar sürüyor")
	assert.Equal(t, "Ankara'da Deprem: Son Gelişmeler", e.SEOTitle)
	assert.Equal(t, []string{"deprem", "ankara", "afad"}, e.Keywords)
	assert.Equal(t, []string{"#deprem", "#ankara"}, e.Hashtags)
	assert.Equal(t, []string{"Son Durum", "Uzman Görüşleri"}, e.Headings)
	assert.Equal(t, []string{"Artçı sarsıntılar sürüyor", "Hasar tespiti başladı"}, e.Bullets)
	assert.Equal(t, "Gelişmeler için sayfayı takip edin.", e.CallToAction)
}

func TestParseEnrichment_PartialLabels(t *testing.T) {
	raw := "ENHANCED_CONTENT: sadece içerik var"

	e := ParseEnrichment(raw)

	assert.Equal(t, "sadece içerik var", e.EnhancedContent)
	assert.Empty(t, e.SEOTitle)
	assert.Empty(t, e.Keywords)
	assert.Empty(t, e.CallToAction)
}

func TestParseEnrichment_NoLabels(t *testing.T) {
	e := ParseEnrichment("serbest biçimli bir yanıt, etiket yok")

	assert.Empty(t, e.EnhancedContent)
	assert.Empty(t, e.SEOTitle)
	assert.Empty(t, e.MetaDescription)
}

func TestParseEnrichment_TruncatesSEOFields(t *testing.T) {
	longTitle := strings.Repeat("ç", 80)
	longMeta := strings.Repeat("ş", 200)
	raw := "SEO_TITLE: " + longTitle + "\nMETA_DESCRIPTION: " + longMeta

	e := ParseEnrichment(raw)

	assert.Equal(t, 60, len([]rune(e.SEOTitle)))
	assert.Equal(t, 155, len([]rune(e.MetaDescription)))
}

func TestParseEnrichment_Idempotent(t *testing.T) {
	raw := "SEO_TITLE: Kısa Başlık\nKEYWORDS: a, b"

	first := ParseEnrichment(raw)
	second := ParseEnrichment(raw)

	assert.Equal(t, first, second)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitList("a, b ,c"))
	assert.Equal(t, []string{"x", "y"}, splitList("- x\n- y"))
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList(" , , "))
}
