package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tidwall/gjson"

	"github.com/hitushen/hostsummary/internal/models"
)

var errNoHosts = errors.New("input contains no hosts")

// readHosts 读取文件或标准输入（path 为 "-"）。
func readHosts(path string) ([]models.HostRecord, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return parseHosts(data)
}

// parseHosts 接受 {"hosts": [...]}、{"items": [...]} 或直接的数组。
func parseHosts(data []byte) ([]models.HostRecord, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("input is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	list := root
	if !root.IsArray() {
		list = root.Get("hosts")
		if !list.IsArray() {
			list = root.Get("items")
		}
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("expected a host array or an object with a hosts array")
	}

	var hosts []models.HostRecord
	list.ForEach(func(_, value gjson.Result) bool {
		hosts = append(hosts, models.HostRecord(value.Raw))
		return true
	})
	if len(hosts) == 0 {
		return nil, errNoHosts
	}
	return hosts, nil
}
