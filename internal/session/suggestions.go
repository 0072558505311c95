// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "math/rand/v2"

// DefaultSuggestionCount is how many prompts the empty state shows.
const DefaultSuggestionCount = 4

// AllSuggestions are the empty-state prompts.
var AllSuggestions = []string{
	"Help me debug a React hook loop",
	"Write a professional email for a job app",
	"Explain quantum physics like I'm 5",
	"Ideas for a sustainable startup",
	"Create a Python script to scrape a website",
	"Explain the difference between SQL and NoSQL",
	"Write a short sci-fi story about Mars",
	"Summary of the French Revolution",
	"How does CRISPR work?",
	"Plan a 3-day trip to Tokyo",
	"Business plan for a specialty coffee shop",
	"Marketing strategies for a new SaaS",
	"Tell me a joke about robots",
	"Tips for improving public speaking",
	"Recipe for a perfect chocolate cake",
	"Analyze the themes of 1984 by George Orwell",
	"How to set up a CI/CD pipeline",
	"Compare React vs Vue in 2025",
	"Explain the theory of relativity simply",
	"Best practices for accessible web design",
}

func pick(r *rand.Rand, n int) []string {
	if n <= 0 {
		return nil
	}
	if n > len(AllSuggestions) {
		n = len(AllSuggestions)
	}
	out := make([]string, n)
	for i, idx := range r.Perm(len(AllSuggestions))[:n] {
		out[i] = AllSuggestions[idx]
	}
	return out
}
