package dispatch

// Result 检查或执行结果，同步调用的响应与异步回调共用
type Result struct {
	TicketID string `json:"ticket_id" binding:"required"`
	Result   bool   `json:"result"`
	Msg      string `json:"msg"`
	Error    string `json:"error"`
}
