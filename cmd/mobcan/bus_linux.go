package main

import (
	_ "github.com/mobcan/mobcan/pkg/can/socketcan"
	_ "github.com/mobcan/mobcan/pkg/can/socketcanv2"
)
