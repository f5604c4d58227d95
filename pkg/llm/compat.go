package llm

// SearchGroundedVendor is the provider family whose grounding tools are
// mutually exclusive with provider-native structured output.
const SearchGroundedVendor = "gemini"

// UseStructuredOutput decides whether an adapter request may attach
// responseMimeType/responseJsonSchema. The rule is a hard contract:
//
//	grounded ∧ vendor is the search-grounded family ⇒ no structured output
//	otherwise ⇒ structured output iff the task declares an output schema
//
// When this returns false for a schema-bearing task, the orchestrator parses
// the raw text defensively and validates post-hoc.
func UseStructuredOutput(vendor string, hasGroundingTools, hasOutputSchema bool) bool {
	if hasGroundingTools && vendor == SearchGroundedVendor {
		return false
	}
	return hasOutputSchema
}

// RequestUsesStructuredOutput applies the gate to a request for a vendor.
func RequestUsesStructuredOutput(vendor string, req *Request) bool {
	return UseStructuredOutput(vendor, req.HasGroundingTools(), req.HasOutputSchema())
}
