package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"

	"lsmbatch/pkg/batch"
	"lsmbatch/pkg/compression"
	"lsmbatch/pkg/keys"
)

func post(base, encoding string, wb *batch.WriteBatch) {
	var body bytes.Buffer
	raw := batch.Internals(wb).Contents()
	if _, err := compression.Compress(encoding, bytes.NewReader(raw), &body); err != nil {
		log.Println("compress error:", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, base+"/api/batch", &body)
	if err != nil {
		log.Println("request error:", err)
		return
	}
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	fmt.Printf("[client] POST   batch count=%d bytes=%d encoding=%q → %s\n", wb.Count(), len(raw), encoding, base)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Println("batch error:", err)
		return
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	fmt.Printf("[client] RESPONSE %d: %s", resp.StatusCode, out)
}

func dump(base string) {
	resp, err := http.Get(base + "/api/dump")
	if err != nil {
		log.Println("dump error:", err)
		return
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	fmt.Printf("[client] DUMP: %s\n", out)
}

func main() {
	base := flag.String("addr", "http://localhost:8080", "server base URL")
	encoding := flag.String("encoding", compression.Zstd, "Content-Encoding for batch bodies")
	flag.Parse()

	var wb batch.WriteBatch
	wb.Put([]byte("foo"), []byte("bar"), nil)
	wb.Delete([]byte("box"))
	wb.Put([]byte("baz"), []byte("boo"), nil)
	post(*base, *encoding, &wb)

	wb.Clear()
	wb.Put([]byte("Adam"), []byte("Ant"), &batch.KeyMetaData{Kind: keys.KindPutExplicitExpiry, Expiry: 2347})
	wb.Put([]byte("session"), []byte("open"), &batch.KeyMetaData{Kind: keys.KindPutWriteTime})
	post(*base, *encoding, &wb)

	// a truncated batch is rejected after applying what decodes cleanly
	contents := batch.Internals(&wb).Contents()
	var broken batch.WriteBatch
	if err := batch.Internals(&broken).SetContents(contents[:len(contents)-1]); err != nil {
		log.Fatal(err)
	}
	post(*base, *encoding, &broken)

	dump(*base)
}
