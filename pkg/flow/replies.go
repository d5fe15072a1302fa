package flow

// Commands recognised while handling text
const (
	CommandStart  = "course summary"
	CommandCancel = "C"
	CommandSkip   = "n"
)

// User facing replies
const (
	ReplyStart              = "好的，請給我課程的錄音檔!"
	ReplyAudioReceived      = "已收到錄音檔，如果有的話，請給我課程投影片的圖片！如果沒有，請輸入\"n\"告訴我～"
	ReplyCancelled          = "已取消"
	ReplyIdleAudio          = "你想做什麼呢？如果想整理社課筆記，請先輸入course summary！"
	ReplyAwaitingAudio      = "請先傳送課程的錄音檔，或輸入\"C\"取消。"
	ReplyAwaitingAttachment = "請傳送課程投影片的圖片，或輸入\"n\"略過，輸入\"C\"取消。"
	ReplyBusy               = "正在整理課程筆記，請稍候…"
	ReplySummaryFailed      = "整理課程筆記時發生錯誤：%v"
)
