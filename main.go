package main

import "gitlab.com/paramountdax-exchange/genealogy_api/cmd"

func main() {
	cmd.Execute()
}
