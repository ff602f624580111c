package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/stellar/go/keypair"

	"github.com/interstellar/slingshot/vending"
)

func main() {
	var (
		seed  = flag.String("seed", "", "print the address of this seed instead of generating a new key")
		label = flag.String("label", "", "print the contract account for this deployment label instead")
	)
	flag.Parse()

	if *label != "" {
		fmt.Println(vending.ContractAddress(*label))
		return
	}

	if *seed != "" {
		kp, err := keypair.Parse(*seed)
		if err != nil {
			log.Fatalf("error parsing seed: %s", err)
		}
		if _, ok := kp.(*keypair.Full); !ok {
			log.Fatal("-seed must be a secret seed, not an address")
		}
		fmt.Println(kp.Address())
		return
	}

	kp, err := keypair.Random()
	if err != nil {
		log.Fatalf("error generating key: %s", err)
	}
	fmt.Printf("seed:    %s\naddress: %s\n", kp.Seed(), kp.Address())
}
