package topology

import (
	"encoding/json"
	"fmt"
)

// GuardType identifies a structural guard.
type GuardType string

// GuardMCLAGOddLeafCount fires when an MC-LAG class cannot be paired.
const GuardMCLAGOddLeafCount GuardType = "MC_LAG_ODD_LEAF_COUNT"

// Guard is a semantic constraint violation. Guards flip a derivation to
// invalid without stopping it. Each guard type carries its own payload.
type Guard interface {
	GuardType() GuardType
	Message() string
}

// MCLAGDetails is the payload of an MC-LAG parity guard.
type MCLAGDetails struct {
	ClassID      string `json:"classId"`
	LeafCount    int    `json:"leafCount"`
	MCLAGEnabled bool   `json:"mcLagEnabled"`
}

// MCLAGOddLeafCount reports a class with mcLag set and a leaf count that
// is odd or below two.
type MCLAGOddLeafCount struct {
	ClassID   string
	LeafCount int
}

func (g MCLAGOddLeafCount) GuardType() GuardType { return GuardMCLAGOddLeafCount }

func (g MCLAGOddLeafCount) Message() string {
	return fmt.Sprintf("MC-LAG requires even leaf count >= 2, but class '%s' has %d leaves", g.ClassID, g.LeafCount)
}

// Details returns the typed payload.
func (g MCLAGOddLeafCount) Details() MCLAGDetails {
	return MCLAGDetails{ClassID: g.ClassID, LeafCount: g.LeafCount, MCLAGEnabled: true}
}

func (g MCLAGOddLeafCount) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		GuardType GuardType    `json:"guardType"`
		Message   string       `json:"message"`
		Details   MCLAGDetails `json:"details"`
	}{g.GuardType(), g.Message(), g.Details()})
}

// checkMCLAG returns the parity guard for a class, or nil.
func checkMCLAG(classID string, mcLag bool, leafCount int) Guard {
	if !mcLag {
		return nil
	}
	if leafCount >= 2 && leafCount%2 == 0 {
		return nil
	}
	return MCLAGOddLeafCount{ClassID: classID, LeafCount: leafCount}
}
