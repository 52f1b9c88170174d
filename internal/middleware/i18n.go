// internal/middleware/i18n.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/couponx-backend/internal/i18n"
)

// I18nMiddleware picks the first Accept-Language entry that has a locale
// and stores it as "lang".
func I18nMiddleware(defaultLang string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("lang", negotiateLanguage(c.GetHeader("Accept-Language"), i18n.GetSupportedLanguages(), defaultLang))
		c.Next()
	}
}

// Handles values like "zh-TW,zh;q=0.9,en;q=0.8". Quality weights are not
// re-sorted; browsers already send them in preference order.
func negotiateLanguage(header string, supported []string, fallback string) string {
	available := make(map[string]struct{}, len(supported))
	for _, lang := range supported {
		available[lang] = struct{}{}
	}

	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.Split(part, ";")[0])
		if tag == "" {
			continue
		}

		lang := normalizeLanguageTag(tag)
		if _, ok := available[lang]; ok {
			return lang
		}
	}
	return fallback
}

func normalizeLanguageTag(tag string) string {
	switch strings.ToLower(strings.ReplaceAll(tag, "_", "-")) {
	case "zh-tw", "zh-hant", "zh-hk", "zh":
		return "zh_TW"
	}

	if base := strings.SplitN(tag, "-", 2)[0]; base != "" {
		return strings.ToLower(base)
	}
	return tag
}
