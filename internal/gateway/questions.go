package gateway

import "github.com/sparkd-app/dategame/internal/game"

// questionBank holds a fixed set of paired-quiz questions per stage. A
// production deployment would serve these from the profile backend; the
// gateway ships a small bank so a full match can run standalone.
var questionBank = map[int][]game.Question{
	1: {
		{
			ID:       "ice-1",
			Text:     "Perfect first date?",
			Category: "lifestyle",
			Points:   10,
			Options: []game.Option{
				{ID: "a", Text: "Coffee and a long walk"},
				{ID: "b", Text: "Dinner at a new restaurant"},
				{ID: "c", Text: "Something active outdoors"},
				{ID: "d", Text: "A gig or a show"},
			},
			Required: true,
		},
		{
			ID:       "ice-2",
			Text:     "Weekend mornings are for...",
			Category: "lifestyle",
			Points:   10,
			Options: []game.Option{
				{ID: "a", Text: "Sleeping in"},
				{ID: "b", Text: "An early run"},
				{ID: "c", Text: "A slow breakfast"},
				{ID: "d", Text: "Getting out of town"},
			},
			Required: true,
		},
		{
			ID:       "ice-3",
			Text:     "Pick a travel style",
			Category: "travel",
			Points:   10,
			Options: []game.Option{
				{ID: "a", Text: "Planned to the hour"},
				{ID: "b", Text: "Loose plan, lots of wandering"},
				{ID: "c", Text: "Beach, book, repeat"},
				{ID: "d", Text: "Wherever the cheap flights go"},
			},
			Required: true,
		},
	},
	2: {
		{
			ID:       "deep-1",
			Text:     "What matters most in a partner?",
			Category: "values",
			Points:   20,
			Options: []game.Option{
				{ID: "a", Text: "Honesty"},
				{ID: "b", Text: "Humor"},
				{ID: "c", Text: "Ambition"},
				{ID: "d", Text: "Kindness"},
			},
			Required: true,
		},
		{
			ID:       "deep-2",
			Text:     "How do you handle disagreements?",
			Category: "values",
			Points:   20,
			Options: []game.Option{
				{ID: "a", Text: "Talk it out right away"},
				{ID: "b", Text: "Cool off first, then talk"},
				{ID: "c", Text: "Agree to disagree"},
				{ID: "d", Text: "Write it down before saying it"},
			},
			Required: true,
		},
		{
			ID:       "deep-3",
			Text:     "Five years from now you want to be...",
			Category: "goals",
			Points:   20,
			Options: []game.Option{
				{ID: "a", Text: "Settled somewhere I love"},
				{ID: "b", Text: "Still exploring"},
				{ID: "c", Text: "Leading something I built"},
				{ID: "d", Text: "Surrounded by family"},
			},
			Required: true,
		},
	},
	3: {
		{
			ID:       "final-1",
			Text:     "Love is mostly...",
			Category: "romance",
			Points:   30,
			Options: []game.Option{
				{ID: "a", Text: "Showing up every day"},
				{ID: "b", Text: "Grand gestures"},
				{ID: "c", Text: "Growing together"},
				{ID: "d", Text: "Luck and timing"},
			},
			Required: true,
		},
		{
			ID:       "final-2",
			Text:     "Deal breaker?",
			Category: "romance",
			Points:   30,
			Options: []game.Option{
				{ID: "a", Text: "Dishonesty"},
				{ID: "b", Text: "No sense of humor"},
				{ID: "c", Text: "Different life goals"},
				{ID: "d", Text: "Hates my cooking"},
			},
			Required: true,
		},
		{
			ID:       "final-3",
			Text:     "After this game we should...",
			Category: "romance",
			Points:   30,
			Options: []game.Option{
				{ID: "a", Text: "Plan a real date"},
				{ID: "b", Text: "Keep chatting"},
				{ID: "c", Text: "Play another round"},
				{ID: "d", Text: "See where it goes"},
			},
			Required: true,
		},
	},
}

// Questions returns the bank for one stage, or nil for an unknown stage.
func Questions(stage int) []game.Question {
	return questionBank[stage]
}
