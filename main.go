package main

import (
	"github.com/joho/godotenv"

	"gameverify/internal/app"
)

func main() {
	// .env опционален: в проде переменные приходят из окружения платформы
	_ = godotenv.Load()
	app.Run()
}
