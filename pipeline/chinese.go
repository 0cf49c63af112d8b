package pipeline

import (
	"strings"
	"sync"

	"github.com/longbridgeapp/opencc"

	"github.com/sxxw-site/sitei18n/config"
	"github.com/sxxw-site/sitei18n/locale"
	"github.com/sxxw-site/sitei18n/mask"
)

// ActionConverted marks a Chinese variant produced by script conversion
// instead of the translation service.
const ActionConverted Action = "converted"

// chineseConversion returns the OpenCC configuration turning src into tgt,
// or "" when the pair is not two Chinese variants or no script applies.
func chineseConversion(src, tgt string) (string, bool) {
	if !mask.IsChinese(src) || !mask.IsChinese(tgt) {
		return "", false
	}
	t := locale.NormalizeCode(tgt)
	switch {
	case strings.Contains(t, "hant"), strings.HasSuffix(t, "-tw"), strings.HasSuffix(t, "-hk"):
		return "s2t", true
	case strings.Contains(t, "hans"), strings.HasSuffix(t, "-cn"):
		return "t2s", true
	}
	return "", true
}

var (
	convertersMu sync.Mutex
	converters   = map[string]*opencc.OpenCC{}
)

// converter loads the dictionaries for conversion once per process.
func converter(conversion string) (*opencc.OpenCC, error) {
	convertersMu.Lock()
	defer convertersMu.Unlock()
	if cc, ok := converters[conversion]; ok {
		return cc, nil
	}
	cc, err := opencc.New(conversion)
	if err != nil {
		return nil, err
	}
	converters[conversion] = cc
	return cc, nil
}

// convertChinese writes target as the script conversion of src, in src
// order. Strings that cannot be converted are copied verbatim. Nothing is
// sent to the translation service.
func (p *Pipeline) convertChinese(src *locale.FlatDict, srcCode, conversion string, target config.LangSpec, opts Options) (Report, error) {
	outPath := p.cfg.LocaleFile(target.Code)
	rep := Report{Code: target.Code, Path: outPath, Action: ActionConverted, From: srcCode}

	var cc *opencc.OpenCC
	if conversion != "" {
		var err error
		if cc, err = converter(conversion); err != nil {
			p.logf("[%s] %s unavailable, copying %s verbatim: %v", target.Code, conversion, srcCode, err)
		}
	}

	pairs := src.Pairs()
	for i, pr := range pairs {
		text, ok := pr.Value.Text()
		if !ok || cc == nil {
			continue
		}
		if out, err := cc.Convert(text); err == nil {
			pairs[i].Value = locale.String(out)
		}
	}

	if err := p.copyDict(locale.FromPairs(pairs), outPath, opts); err != nil {
		return rep, err
	}
	if !opts.DryRun {
		p.logf("[%s] converted from %s: %s", target.Code, srcCode, outPath)
	}
	return rep, nil
}
