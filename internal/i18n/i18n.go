package i18n

import (
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/iamwavecut/modbot/internal/infra"
	"github.com/iamwavecut/modbot/resources"
)

// Keys are the English texts; translations are keyed by upper-case
// language code.
var state = struct {
	once         sync.Once
	translations map[string]map[string]string
}{}

func load() {
	state.translations = make(map[string]map[string]string)
	content, err := resources.FS.ReadFile(infra.GetResourcesPath("i18n", "translations.yml"))
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load i18n")
		return
	}
	if err := yaml.Unmarshal(content, &state.translations); err != nil {
		log.WithField("error", err.Error()).Error("cant unmarshal i18n")
	}
}

// Get returns the translation of key into lang, or key itself when there is
// none.
func Get(key, lang string) string {
	if strings.EqualFold(lang, "en") || lang == "" {
		return key
	}
	state.once.Do(load)
	if res, ok := state.translations[key][strings.ToUpper(lang)]; ok && res != "" {
		return res
	}
	log.WithField("key", key).Trace("no translation")
	return key
}
