package drops

import "encoding/base64"

// DeriveClaimToken synthesizes a claim-instance token for a drop whose
// inventory record omitted one. The upstream claim endpoint accepts an
// opaque "user#campaign#drop" composite in that case; keeping the
// derivation in one pure function keeps its correctness a single
// testable unit rather than duplicated inline at the call sites.
func DeriveClaimToken(userID, campaignID, dropID string) string {
	if userID == "" || campaignID == "" || dropID == "" {
		return ""
	}
	composite := userID + "#" + campaignID + "#" + dropID
	return base64.StdEncoding.EncodeToString([]byte(composite))
}

// ClaimTokenFor returns the drop's explicit claim token when present,
// falling back to the derived composite token.
func ClaimTokenFor(p DropProgress, userID, campaignID, dropID string) string {
	if p.ClaimToken != "" {
		return p.ClaimToken
	}
	return DeriveClaimToken(userID, campaignID, dropID)
}
