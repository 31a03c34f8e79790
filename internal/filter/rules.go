package filter

import "regexp"

var (
	promoPattern = regexp.MustCompile(`(?i)\b(sponsored|sponsor|advert|advertisement|advertising|ads?|promo|promoted|promotion|promo ?code|coupons?|deals?|discounts?|sale|clearance|buy now|shop now|order now|limited time|free trial|special offer|affiliate)\b`)

	currencyPattern = regexp.MustCompile(`(?i)([$€£¥₹]\s?\d)|(\b\d+([.,]\d{1,2})?\s?(usd|eur|gbp|dollars?|euros?|pounds?)\b)`)

	navigationPattern = regexp.MustCompile(`(?i)^(menu|main menu|back|go back|next|next page|previous|prev|previous page|home|more|top|back to top|skip|skip to (main )?content|skip navigation|close|open|toggle|expand|collapse|show more|show less|see more|see all|load more|view all|read more|continue|sign in|log in|login|log out|logout|sign up|register|account|search|page \d+|\d+)$`)

	socialPattern = regexp.MustCompile(`(?i)^(share|follow|tweet|retweet|like|subscribe|pin|pin it|reply|comment|email|print|save)(\s+(this|us|on|via|to|with)\b.*)?$`)

	legalPattern = regexp.MustCompile(`(?i)(\b(privacy|privacy policy|terms of (service|use)|terms (and|&) conditions|cookies?|cookie (policy|settings|preferences)|copyright|all rights reserved|disclaimer|imprint|legal notice|gdpr)\b|©|^terms$)`)

	// "3:45", "1:02:33"
	clockPattern = regexp.MustCompile(`^(\d{1,2}:)?\d{1,2}:\d{2}$`)

	// "5 min", "2d", "3 hours ago", "yesterday", "just now"
	relativeTimePattern = regexp.MustCompile(`(?i)^(\d+\s*(s|sec|secs|seconds?|m|min|mins|minutes?|h|hr|hrs|hours?|d|days?|w|wk|wks|weeks?|mo|mos|months?|y|yr|yrs|years?)(\s+ago)?|an? (second|minute|hour|day|week|month|year) ago|yesterday|today|just now)$`)

	duplicatePattern = regexp.MustCompile(`(?i)\b(copy|copies|duplicate|duplicates|mirror|mirrors|mirrored)\b`)
)

// trackingSubstrings are matched against the lowercased href.
var trackingSubstrings = []string{
	"doubleclick.",
	"googleadservices.",
	"googlesyndication.",
	"google-analytics.",
	"adservice.",
	"/aclk",
	"/ads/",
	"/adclick",
	"utm_",
	"/analytics",
	"/tracking",
	"/track?",
	"/pixel",
	"clickserve",
	"facebook.com/tr",
	"taboola.",
	"outbrain.",
	"affiliate",
	"/redirect?",
}
