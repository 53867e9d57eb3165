// Package penname generates the public names children publish under.
package penname

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

var adjectives = []string{
	"happy", "sunny", "brave", "bright", "swift", "clever", "jolly", "mighty",
	"lucky", "magic", "bouncy", "cheerful", "daring", "eager", "gentle", "jazzy",
	"kindly", "lively", "merry", "noble", "perky", "quick", "snappy", "zippy",
	"bold", "cosmic", "curious", "dreamy", "epic", "groovy", "sparkly", "wise",
}

var nouns = []string{
	"dragon", "tiger", "eagle", "dolphin", "panda", "otter", "fox", "owl",
	"phoenix", "unicorn", "rocket", "wizard", "knight", "pirate", "robot", "comet",
	"explorer", "ranger", "captain", "inventor", "poet", "storyteller", "lantern", "badger",
	"falcon", "koala", "penguin", "meteor", "voyager", "sprite", "hedgehog", "narwhal",
}

// Generate returns a name like "BraveOtter42"
func Generate() (string, error) {
	adjective, err := randomElement(adjectives)
	if err != nil {
		return "", err
	}
	noun, err := randomElement(nouns)
	if err != nil {
		return "", err
	}
	n, err := rand.Int(rand.Reader, big.NewInt(90))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s%d", capitalize(adjective), capitalize(noun), n.Int64()+10), nil
}

func randomElement(slice []string) (string, error) {
	num, err := rand.Int(rand.Reader, big.NewInt(int64(len(slice))))
	if err != nil {
		return "", err
	}
	return slice[num.Int64()], nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
