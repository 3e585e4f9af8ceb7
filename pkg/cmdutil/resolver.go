// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmdutil

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/alecthomas/kong"
	"golang.org/x/term"
)

// ResolvePassword returns a kong.Resolver that interactively prompts for
// required password flags that were not provided on the command line or
// via the environment. With confirm set, the password is typed twice and
// must match.
func ResolvePassword(confirm bool) kong.Resolver {
	return kong.ResolverFunc(func(ctx *kong.Context, parent *kong.Path, flag *kong.Flag) (interface{}, error) {
		if flag.Tag.Type != "password" || !flag.Required || flag.Value.Set && !flag.Value.Target.IsZero() {
			return nil, nil
		}
		if flag.Target.Kind() != reflect.String {
			return nil, fmt.Errorf(`'password' type must be applied to a string not %s`, flag.Target.Type())
		}

		fmt.Printf("No value has been provided for flag `%s`.\n", flag.ShortSummary())
		if flag.Help != "" {
			fmt.Println("Description: " + flag.Help)
		}

		for {
			pwd, err := promptSecret(fmt.Sprintf("Enter %s: ", strings.ToTitle(flag.Name)))
			if err != nil {
				return "", err
			}
			if pwd == "" {
				// Let kong report the missing required flag.
				return nil, nil
			}
			if !confirm {
				return pwd, nil
			}
			again, err := promptSecret(fmt.Sprintf("Re-enter %s: ", strings.ToTitle(flag.Name)))
			if err != nil {
				return "", err
			}
			fmt.Println()
			if pwd == again {
				return pwd, nil
			}
			fmt.Println("Passwords do not match. Please try again.")
		}
	})
}

// promptSecret reads one line from the terminal with echo disabled.
func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(0)
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("password could not be read: %v", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
