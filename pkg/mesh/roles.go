package mesh

// ShouldOffer decides which side of a participant pair produces the offer
// when both learn about each other at the same time: the lexicographically
// lower id offers, the other side waits. Applying this on both endpoints
// yields exactly one offer per pair and avoids glare.
//
// The rule is applied identically whether the peer was learned from the
// bulk member enumeration on join or from an incremental joined event.
func ShouldOffer(selfID, peerID string) bool {
	return selfID < peerID
}
