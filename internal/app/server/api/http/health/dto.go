package health

type Input struct{}

type Output struct {
	Body Response
}

// Response ответ ping; клиент проверяет только код 200
type Response struct {
	Message string `json:"message" example:"pong" doc:"Always pong"`
	Time    string `json:"server_time" doc:"Server time in UTC, RFC 3339"`
}
