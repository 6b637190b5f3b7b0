package reqflow_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/adamwoolhether/reqflow"
	"github.com/adamwoolhether/reqflow/client"
)

func ExampleNewClient() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"msg":"hello"}`)
	}))
	defer ts.Close()

	c, err := reqflow.NewClient(client.WithTimeout(5 * time.Second))
	if err != nil {
		fmt.Println("build error:", err)
		return
	}

	resp, err := c.Get(context.Background(), ts.URL)
	if err != nil {
		fmt.Println("request error:", err)
		return
	}

	var body struct{ Msg string }
	if err := resp.JSON(&body); err != nil {
		fmt.Println("decode error:", err)
		return
	}

	fmt.Println(body.Msg)
	// Output: hello
}
