// Package i18n resolves user-facing message keys. The core never branches
// on locale; it only hands keys and arguments to a Translator.
package i18n

import (
	"log/slog"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Translator looks up a message key and formats it with args.
type Translator interface {
	T(key string, args ...any) string
}

// Message keys.
const (
	KeyTimeout        = "clipboard.error.timeout"
	KeyUnsupported    = "clipboard.error.unsupported"
	KeyManualPaste    = "clipboard.loading.manualPaste"
	KeyDetected       = "clipboard.status.detected"
	KeyCopyAllSuccess = "clipboard.actions.copyAllSuccess"
	KeyCopyAllError   = "clipboard.actions.copyAllError"
	KeyCopied         = "clipboard.edit.copied"
	KeyCopyError      = "clipboard.edit.copyError"
	KeyNothingToCopy  = "clipboard.actions.nothingToCopy"

	// Labels only the web page renders.
	KeyRead       = "clipboard.actions.read"
	KeyCopyAll    = "clipboard.actions.copyAll"
	KeyCopy       = "clipboard.edit.copy"
	KeyReading    = "clipboard.loading.reading"
	KeyEmpty      = "clipboard.status.empty"
	KeyRichText   = "clipboard.status.richText"
	KeyHiddenData = "clipboard.status.hiddenData"
)

// supported is ordered by preference; the first entry is the fallback.
var supported = []language.Tag{language.English, language.SimplifiedChinese}

var matcher = language.NewMatcher(supported)

var messages = map[language.Tag]map[string]string{
	language.English: {
		KeyTimeout:        "Reading the clipboard timed out. Allow clipboard access for this page or paste manually (Ctrl+V / Cmd+V).",
		KeyUnsupported:    "No clipboard access is available on this host.",
		KeyManualPaste:    "Press Ctrl+V (Cmd+V on macOS) in the page to paste.",
		KeyDetected:       "%d formats detected",
		KeyCopyAllSuccess: "Copied %d formats to the clipboard",
		KeyCopyAllError:   "Could not copy to the clipboard",
		KeyCopied:         "Copied to the clipboard",
		KeyCopyError:      "Copy failed",
		KeyNothingToCopy:  "Nothing to copy",
		KeyRead:           "Read clipboard",
		KeyCopyAll:        "Copy all",
		KeyCopy:           "Copy",
		KeyReading:        "Reading the clipboard…",
		KeyEmpty:          "The clipboard is empty",
		KeyRichText:       "Rich text",
		KeyHiddenData:     "Contains hidden data",
	},
	language.SimplifiedChinese: {
		KeyTimeout:        "读取剪贴板超时，请确保允许网站访问剪贴板或手动粘贴（Ctrl+V/Cmd+V）",
		KeyUnsupported:    "当前环境不支持剪贴板访问",
		KeyManualPaste:    "请在页面中按 Ctrl+V（macOS 为 Cmd+V）粘贴",
		KeyDetected:       "检测到 %d 种格式",
		KeyCopyAllSuccess: "已复制 %d 种格式到剪贴板",
		KeyCopyAllError:   "复制到剪贴板失败",
		KeyCopied:         "已复制到剪贴板",
		KeyCopyError:      "复制失败",
		KeyNothingToCopy:  "没有可复制的内容",
		KeyRead:           "读取剪贴板",
		KeyCopyAll:        "全部复制",
		KeyCopy:           "复制",
		KeyReading:        "正在读取剪贴板…",
		KeyEmpty:          "剪贴板为空",
		KeyRichText:       "富文本",
		KeyHiddenData:     "包含隐藏数据",
	},
}

var cat = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(supported[0]))
	for tag, msgs := range messages {
		for key, msg := range msgs {
			if err := b.SetString(tag, key, msg); err != nil {
				slog.Error("i18n: bad catalog entry", "lang", tag, "key", key, "err", err)
			}
		}
	}
	return b
}

// Printer is a Translator bound to one language.
type Printer struct {
	tag language.Tag
	p   *message.Printer
}

// New returns a Printer for the best supported match of the given language
// preferences. Each preference may be a BCP 47 tag or a full
// Accept-Language header value.
func New(prefs ...string) *Printer {
	tag := Match(prefs...)
	return &Printer{tag: tag, p: message.NewPrinter(tag, message.Catalog(cat))}
}

// T implements Translator.
func (p *Printer) T(key string, args ...any) string {
	return p.p.Sprintf(key, args...)
}

// Lang returns the BCP 47 tag of the printer's language.
func (p *Printer) Lang() string { return p.tag.String() }

// Match picks a supported language for the given preferences.
func Match(prefs ...string) language.Tag {
	var tags []language.Tag
	for _, pref := range prefs {
		pref = strings.TrimSpace(pref)
		if pref == "" {
			continue
		}
		parsed, _, err := language.ParseAcceptLanguage(pref)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	if len(tags) == 0 {
		return supported[0]
	}
	_, idx, _ := matcher.Match(tags...)
	return supported[idx]
}

// Keys returns every message key in the catalog, for the web page.
func Keys() []string {
	out := make([]string, 0, len(messages[supported[0]]))
	for k := range messages[supported[0]] {
		out = append(out, k)
	}
	return out
}

// Table returns every message of the printer's language with format verbs
// left in place, so the web page can render them itself.
func (p *Printer) Table() map[string]string {
	base := messages[supported[0]]
	own := messages[p.tag]
	out := make(map[string]string, len(base))
	for k, v := range base {
		if s, ok := own[k]; ok {
			v = s
		}
		out[k] = v
	}
	return out
}
