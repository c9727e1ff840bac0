package fetch

import (
	"bytes"
	"strings"
)

// botSignature is one substring-evidence rule for a known bot-protection
// vendor. Matching is case-insensitive on the raw HTML.
type botSignature struct {
	vendor   string
	evidence []string
}

var botSignatures = []botSignature{
	{
		vendor: "DataDome",
		evidence: []string{
			"datadome", "dd_cookie_test_",
		},
	},
	{
		vendor: "Cloudflare",
		evidence: []string{
			"checking your browser before accessing",
			"cf-browser-verification",
			"cf_chl_opt",
			"/cdn-cgi/challenge-platform/",
		},
	},
	{
		vendor: "PerimeterX",
		evidence: []string{
			"perimeterx", "_px3", "px-captcha",
		},
	},
	{
		vendor: "Distil",
		evidence: []string{
			"distil_r_captcha", "distilnetworks",
		},
	},
	{
		vendor: "Akamai",
		evidence: []string{
			"access denied", "akamai", "ak_bmsc",
		},
	},
}

// detectBotProtection matches html against known bot-protection challenge
// pages. It returns the vendor name on a match, "" otherwise.
func detectBotProtection(html []byte) string {
	lower := bytes.ToLower(html)
	for _, sig := range botSignatures {
		matched := 0
		for _, ev := range sig.evidence {
			if bytes.Contains(lower, []byte(strings.ToLower(ev))) {
				matched++
			}
		}
		// Akamai's "access denied" phrase is common prose; require it plus
		// the ak_bmsc cookie marker or the vendor name itself to avoid
		// false-positiving on ordinary 403 pages.
		if sig.vendor == "Akamai" {
			if bytes.Contains(lower, []byte("akamai")) || bytes.Contains(lower, []byte("ak_bmsc")) {
				if bytes.Contains(lower, []byte("access denied")) || bytes.Contains(lower, []byte("akamai")) {
					return sig.vendor
				}
			}
			continue
		}
		if matched > 0 {
			return sig.vendor
		}
	}
	return ""
}
