package main

import "github.com/ValentinKolb/nps/cmd"

func main() {
	cmd.Execute()
}
