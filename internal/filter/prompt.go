// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package filter

import "fmt"

// systemPrompt instructs the model to decide relevance and answer with one
// strict JSON object.
const systemPrompt = `You are an assistant that evaluates scientific papers for inclusion in a research corpus.
Your task is to decide if a given article (title + abstract) is RELEVANT or NOT RELEVANT based on two criteria:
1. Inclusive criteria: conditions that the paper must satisfy to be considered relevant.
2. Exclusive criteria: conditions that disqualify a paper, even if the inclusive criteria are met.

Output ONLY a valid JSON object in this exact format:
{
  "match": true or false,
  "explanation": "a brief one-sentence justification for the decision"
}

Keep the explanation short and factual. Do not include any additional commentary or text outside of this JSON format.`

// userPrompt renders the criteria and the article for one decision.
func userPrompt(query, exclude, title, abstract string) string {
	return fmt.Sprintf(`Inclusive criteria: %s
Exclusive criteria: %s

For the article below, answer ONLY with a JSON object with two fields:
  - match: true or false (boolean)
  - explanation: a short 1-2 sentence justification (string)

Do NOT include any additional text.

Article:
%s
%s`, query, exclude, title, abstract)
}
