package main

import "github.com/mselser95/poloniex-ema-bot/cmd"

func main() {
	cmd.Execute()
}
