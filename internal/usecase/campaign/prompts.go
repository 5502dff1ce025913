package campaign

// Инструкции для модели. Формат ответа везде жёсткий JSON-объект:
// свободный текст на этих этапах не разбирается.
const (
	promptFindSubreddits = `You are given an opinion. Name the subreddits where discussions related to this opinion actively happen and where a comment defending it would fit naturally. Use bare subreddit names without the "r/" prefix. Respond with a JSON object of the form {"subreddits": ["name1", "name2"]} and nothing else.`

	promptFilterPosts = `You are given an opinion and a numbered list of posts. Select the posts whose discussion is genuinely related to the opinion, so that a comment expressing the opinion would be on-topic there. Respond with a JSON object of the form {"relevant": [1, 4]} listing the numbers of the relevant posts. If none are relevant, respond with {"relevant": []}.`

	promptFilterComments = `You are given an opinion and a numbered list of comments. Select the comments that a reply expressing the opinion could meaningfully address: comments arguing about the same subject, for or against. Respond with a JSON object of the form {"relevant": [2]} listing the numbers of the relevant comments. If none are relevant, respond with {"relevant": []}.`

	promptGenerateReplies = `You are given an opinion and a numbered list of comments. For every comment write a reply that naturally expresses and defends the opinion in the context of that comment. Write like a regular forum user: conversational, concrete, no disclaimers. Respond with a JSON object of the form {"replies": ["text for comment 1", "text for comment 2"]} with exactly one reply per comment, in the same order.`
)
