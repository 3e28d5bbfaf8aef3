package ai

// ElementAnalysis is the model's judgment of one interactive element.
type ElementAnalysis struct {
	ElementID        string   `json:"element_id"`
	ElementType      string   `json:"element_type"`
	Purpose          string   `json:"purpose"`
	PossibleActions  []string `json:"possible_actions"`
	ImportanceScore  float64  `json:"importance_score"`
	InteractionHints []string `json:"interaction_hints"`
	RelatedElements  []int    `json:"related_elements"`
}

// PagePurpose summarizes what a page is for.
type PagePurpose struct {
	MainPurpose          string   `json:"main_purpose"`
	KeyFeatures          []string `json:"key_features"`
	UIElementsSummary    string   `json:"ui_elements_summary"`
	UserFlows            []string `json:"user_flows"`
	KeyInteractionPoints []string `json:"key_interaction_points"`
}

// PageContext identifies the page under analysis in prompts and errors.
type PageContext struct {
	URL   string
	Title string
}
