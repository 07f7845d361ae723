package domain

// PolicyInput is the structured document handed to the external policy
// evaluator. The core only marshals it and interprets the deny set; it
// implements no policy logic itself.
type PolicyInput struct {
	Action  string            `json:"action"`
	Env     map[string]string `json:"env"`
	Receipt PolicyReceipt     `json:"receipt"`
}

// PolicyReceipt is the receipt metadata exposed to policy rules.
type PolicyReceipt struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	ActorID string `json:"actor_id"`
	Leaf    string `json:"leaf,omitempty"`
}

// PolicyEvaluation is the evaluator's verdict. An empty deny set means
// allow.
type PolicyEvaluation struct {
	BundleHash string   `json:"bundle_hash,omitempty"`
	Deny       []string `json:"deny,omitempty"`
}

func (e PolicyEvaluation) Allowed() bool {
	return len(e.Deny) == 0
}
