// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfs

import (
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"
)

// browserUserAgent is the browser-class identity used for PDF downloads.
// Several repositories serve PDFs only to browser-looking clients.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// requestPlan is the per-candidate download request after source policy is
// applied. FetchURL may differ from the candidate URL (cache busting); the
// candidate URL is what gets stored in pdf_downloads.url.
type requestPlan struct {
	FetchURL string
	Headers  map[string]string
	PreSleep time.Duration
}

// policyFunc mutates the base plan for one source. New sources plug in by
// registering an entry in sourcePolicies; the downloader is source-agnostic
// otherwise.
type policyFunc func(candidateURL string, plan *requestPlan)

var sourcePolicies = map[string]policyFunc{
	"arxiv":     arxivPolicy,
	"biorxiv":   biorxivPolicy,
	"medrxiv":   biorxivPolicy,
	"preprints": preprintsOrgPolicy,
}

// nowMillis and randomSleep are hooks for tests.
var (
	nowMillis   = func() int64 { return time.Now().UnixMilli() }
	randomSleep = func() time.Duration { return time.Duration(rand.Int63n(int64(2 * time.Second))) }
)

// planRequest builds the request plan for a candidate: the default
// browser-class headers plus any source-specific transform.
func planRequest(source, candidateURL string) requestPlan {
	plan := requestPlan{
		FetchURL: candidateURL,
		Headers: map[string]string{
			"User-Agent": browserUserAgent,
			"Accept":     "application/pdf,*/*;q=0.8",
		},
	}
	if policy, ok := sourcePolicies[strings.ToLower(source)]; ok {
		policy(candidateURL, &plan)
	}
	return plan
}

// arxivPolicy adds the full browser fingerprint, disables caches, and
// appends a unique _cb query parameter so arXiv's CDN cannot serve a
// bot-flagged cached response. The request is preceded by a random 0-2 s
// sleep.
func arxivPolicy(candidateURL string, plan *requestPlan) {
	sep := "?"
	if strings.Contains(candidateURL, "?") {
		sep = "&"
	}
	plan.FetchURL = fmt.Sprintf("%s%s_cb=%d", candidateURL, sep, nowMillis())
	plan.PreSleep = randomSleep()

	plan.Headers["Accept-Language"] = "en-US,en;q=0.9"
	plan.Headers["Accept-Encoding"] = "gzip, deflate, br"
	plan.Headers["Cache-Control"] = "no-cache, no-store, must-revalidate"
	plan.Headers["Pragma"] = "no-cache"
	plan.Headers["Referer"] = "https://arxiv.org/"
	plan.Headers["Sec-Fetch-Dest"] = "document"
	plan.Headers["Sec-Fetch-Mode"] = "navigate"
	plan.Headers["Sec-Fetch-Site"] = "same-origin"
	plan.Headers["Sec-CH-UA"] = `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`
	plan.Headers["Sec-CH-UA-Mobile"] = "?0"
	plan.Headers["Sec-CH-UA-Platform"] = `"Windows"`
}

// biorxivPolicy makes the request look like a Google referral, which the
// Cold Spring Harbor servers accept.
func biorxivPolicy(_ string, plan *requestPlan) {
	plan.Headers["Referer"] = "https://www.google.com/"
}

// preprintsOrgPolicy sets the Referer to the manuscript landing page
// derived from the PDF URL (the /download suffix stripped).
func preprintsOrgPolicy(candidateURL string, plan *requestPlan) {
	landing := strings.TrimSuffix(candidateURL, "/download")
	if u, err := url.Parse(landing); err == nil && u.Scheme != "" {
		plan.Headers["Referer"] = landing
	}
}
