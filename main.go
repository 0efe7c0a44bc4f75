package main

import (
	_ "time/tzdata" // タイムゾーンDBを埋め込む

	"michibiblio-backend/internal/cli"
)

func main() {
	cli.Execute()
}
