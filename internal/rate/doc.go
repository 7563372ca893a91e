// Package rate provides the Redis fixed-window counters behind login and
// refresh throttling.
//
// A window opens on the first hit: INCR and PEXPIRE run in one Lua script
// (see [Hit]). Keys:
//
//	tl:<identifier>   failed logins per phone, email or credential id
//	tli:<ip>          failed logins per client IP
//	tr:<session id>   refreshes per session
//
// Rejections are *autherr.RateLimitError values carrying the remaining window.
package rate
