package main

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

func (cli *commandLine) hashPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	fmt.Printf("%s_ADMINPASSWORDHASH=%s\n", cli.env, hash)
	return nil
}
