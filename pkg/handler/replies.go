package handler

// Commands recognised in plain chat
const (
	CommandClear   = "C"
	CommandSummary = "A"
)

// User facing replies
const (
	ReplyCleared   = "已清空對話紀錄"
	ReplyError     = "Error"
	ReplyNoHistory = "目前沒有對話紀錄"
)

const chatSummaryPrompt = "Summarize the following conversation in Traditional Chinese (繁體中文) as no more than 5 bullet points. Reply with the bullet points only.\n\n%s"
