// Package chat implements the students' learning assistant: a keyword table of canned replies.
package chat

import "strings"

const Greeting = "Hi! I'm your learning assistant. How can I help you today?"

const fallbackReply = "That's an interesting question! I'm still learning, but you can navigate to different sections " +
	"using the dashboard. Is there something specific you'd like to do?"

type rule struct {
	keywords []string
	reply    string
}

// rules are tested in order, the first rule with a keyword contained in the message wins.
var rules = []rule{
	{
		keywords: []string{"suggest", "recommend"},
		reply: "Based on your recent performance, I recommend focusing on topics where you scored below 70%. " +
			"Would you like to see a list of recommended videos?",
	},
	{
		keywords: []string{"progress", "score"},
		reply: "I can see your recent test scores! To view detailed progress analytics, " +
			"visit your Performance page from the dashboard.",
	},
	{
		keywords: []string{"help", "how"},
		reply: "I'm here to help! You can ask me about:\n" +
			"• Subject recommendations\n" +
			"• Your progress and scores\n" +
			"• Study tips\n" +
			"• Navigating the platform\n\n" +
			"What would you like to know?",
	},
	{
		keywords: []string{"video", "watch"},
		reply: "You can find videos on your dashboard! Select your subjects and teachers first, " +
			"then I'll show you personalized video recommendations.",
	},
	{
		keywords: []string{"test", "quiz"},
		reply: "Tests help us understand your learning progress. After watching videos, take tests to track " +
			"your improvement. Don't worry about scores - focus on learning!",
	},
}

// Respond returns the canned reply for text. Matching is a case insensitive substring search.
func Respond(text string) string {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.reply
			}
		}
	}
	return fallbackReply
}
