package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/dirk.krummacker/user-management/internal/randomgen"
	pkgmodel "gitlab.com/dirk.krummacker/user-management/pkg/model"
)

// Usage example on the command line:
// > go run main.go -port=8080
func main() {
	portPtr := flag.Int("port", 8080, "the port of the service")
	flag.Parse()
	baseURL := fmt.Sprintf("http://localhost:%d/users/new", *portPtr)

	jar, err := cookiejar.New(nil)
	if err != nil {
		logrus.WithError(err).Fatal("could not create cookie jar")
	}
	client := &http.Client{Jar: jar}

	fmt.Println()
	fmt.Println("  Elements      POST       PUT       GET    DELETE ")
	fmt.Println("---------------------------------------------------")
	sizes := []int{100, 500, 1000, 5000}
	for _, loops := range sizes {
		// every round starts with an empty list; the ids keep counting
		sendRequest(client, http.MethodDelete, baseURL, nil)
		fmt.Printf("%10d", loops)
		var firstID int
		{
			// POST requests
			var duration int64
			for i := 0; i < loops; i++ {
				id, d := sendPostRequest(client, baseURL)
				if i == 0 {
					firstID = id
				}
				duration += d
			}
			fmt.Printf("%10d", duration/int64(loops*1000))
		}
		{
			// PUT requests
			f := func(id int) int64 {
				body, _ := json.Marshal(pkgmodel.UserInput{Phones: []string{randomgen.PickPhone()}})
				return sendPutGetDeleteRequest(client, baseURL, id, http.MethodPut, bytes.NewReader(body))
			}
			callInLoop(firstID, loops, f)
		}
		{
			// GET requests
			f := func(id int) int64 {
				return sendPutGetDeleteRequest(client, baseURL, id, http.MethodGet, nil)
			}
			callInLoop(firstID, loops, f)
		}
		{
			// DELETE requests
			f := func(id int) int64 {
				return sendPutGetDeleteRequest(client, baseURL, id, http.MethodDelete, nil)
			}
			callInLoop(firstID, loops, f)
		}
		fmt.Println()
	}
}

func callInLoop(firstID int, loops int, f func(id int) int64) {
	ids := createRandomSliceWithIDs(firstID, loops)
	var duration int64
	for _, id := range ids {
		d := f(id)
		duration += d
	}
	fmt.Printf("%10d", duration/int64(loops*1000))
}

func createRandomSliceWithIDs(firstID int, loops int) []int {
	ids := make([]int, 0, loops)
	for i := 0; i < loops; i++ {
		ids = append(ids, firstID+i)
	}
	rand.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	return ids
}

func sendPostRequest(client *http.Client, baseURL string) (int, int64) {
	body, err := json.Marshal(randomgen.UserInput(time.Now()))
	if err != nil {
		logrus.WithError(err).Fatal("could not marshal JSON")
	}
	resBody, duration := sendRequest(client, http.MethodPost, baseURL, bytes.NewReader(body))
	var u pkgmodel.User
	if err := json.Unmarshal(resBody, &u); err != nil {
		logrus.WithError(err).WithField("body", string(resBody)).Fatal("could not unmarshal JSON")
	}
	return u.Id, duration
}

func sendPutGetDeleteRequest(client *http.Client, baseURL string, id int, method string, bodyReader io.Reader) int64 {
	_, duration := sendRequest(client, method, fmt.Sprintf("%s/%d", baseURL, id), bodyReader)
	return duration
}

func sendRequest(client *http.Client, method string, requestURL string, bodyReader io.Reader) ([]byte, int64) {
	req, err := http.NewRequest(method, requestURL, bodyReader)
	if err != nil {
		logrus.WithError(err).Fatal("could not create request")
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	before := time.Now().UnixNano()
	res, err := client.Do(req)
	if err != nil {
		logrus.WithError(err).Fatal("error making http request")
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		logrus.WithError(err).Fatal("could not read response body")
	}
	after := time.Now().UnixNano()
	return resBody, after - before
}
