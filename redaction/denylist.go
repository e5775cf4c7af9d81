package redaction

import (
	"regexp"
	"sort"
)

// originDenylist is the fixed set of origin-region tokens that must
// never reach customer-visible text. All matching is case-insensitive;
// phrases match as substrings, short codes only on word boundaries so
// unrelated English words survive.
var originPhrases = []string{
	"people's republic of china",
	"peoples republic of china",
	"mainland china",
	"guangdong province",
	"zhejiang province",
	"jiangsu province",
	"fujian province",
	"shenzhen bao'an",
	"guangdong",
	"zhejiang",
	"jiangsu",
	"fujian",
	"shenzhen",
	"guangzhou",
	"dongguan",
	"hangzhou",
	"shanghai",
	"beijing",
	"ningbo",
	"yiwu",
	"china post",
	"chinese",
	"china",
	"p.r.c.",
	"p.r.c",
}

var originCodes = []string{
	"PRC",
	"CN",
	"SZX",
	"PVG",
	"HKG",
}

var denylist = compileDenylist()

func compileDenylist() []*regexp.Regexp {
	phrases := append([]string(nil), originPhrases...)
	// Longest first so multi-word phrases win over their substrings.
	sort.Slice(phrases, func(i, j int) bool {
		return len(phrases[i]) > len(phrases[j])
	})

	patterns := make([]*regexp.Regexp, 0, len(phrases)+len(originCodes))
	for _, phrase := range phrases {
		patterns = append(patterns, regexp.MustCompile("(?i)"+regexp.QuoteMeta(phrase)))
	}
	for _, code := range originCodes {
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(code)+`\b`))
	}
	return patterns
}
