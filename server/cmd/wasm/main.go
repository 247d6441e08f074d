//go:build js && wasm
// +build js,wasm

package main

import (
	"fmt"
	"syscall/js"
)

func main() {
	fmt.Println("WASM SEED Module Initialized")

	registerWasm(newAgreements())

	// Export a ready flag to signal that WASM is ready
	js.Global().Set("WasmReady", js.ValueOf(true))
	fmt.Println("WASM module ready: WasmReady = true")

	// Keep the program running indefinitely
	<-make(chan struct{})
}

func errorResult(err error) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", err.Error())
	return result
}

func registerWasm(pending *agreements) {
	// SeedCrypto.Encrypt(keyHex, ivHex, dataHex, mode, padding, feedbackSize) -> {data}
	cipherFunc := func(encrypting bool) js.Func {
		return js.FuncOf(func(this js.Value, args []js.Value) any {
			if len(args) < 3 {
				return errorResult(fmt.Errorf("insufficient args"))
			}
			call := cipherCall{
				KeyHex:     args[0].String(),
				IVHex:      args[1].String(),
				DataHex:    args[2].String(),
				Encrypting: encrypting,
			}
			if len(args) > 3 {
				call.Mode = args[3].String()
			}
			if len(args) > 4 {
				call.Padding = args[4].String()
			}
			if len(args) > 5 {
				call.FeedbackSize = args[5].Int()
			}

			out, err := call.run()
			if err != nil {
				return errorResult(err)
			}
			result := js.Global().Get("Object").New()
			result.Set("data", out)
			return result
		})
	}

	// SeedCrypto.GenerateKey() -> {key, iv}
	generate := js.FuncOf(func(this js.Value, args []js.Value) any {
		key, iv, err := generateKeyAndIV()
		if err != nil {
			return errorResult(err)
		}
		result := js.Global().Get("Object").New()
		result.Set("key", key)
		result.Set("iv", iv)
		return result
	})

	// SeedCrypto.AgreeStart() -> {session, publicKey}
	agreeStart := js.FuncOf(func(this js.Value, args []js.Value) any {
		id, publicKey, err := pending.start()
		if err != nil {
			return errorResult(err)
		}
		result := js.Global().Get("Object").New()
		result.Set("session", id)
		result.Set("publicKey", publicKey)
		return result
	})

	// SeedCrypto.AgreeFinish(session, serverKeyHex) -> {key}
	agreeFinish := js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) < 2 {
			return errorResult(fmt.Errorf("insufficient args"))
		}
		key, err := pending.finish(args[0].Int(), args[1].String())
		if err != nil {
			return errorResult(err)
		}
		result := js.Global().Get("Object").New()
		result.Set("key", key)
		return result
	})

	api := js.Global().Get("Object").New()
	api.Set("Encrypt", cipherFunc(true))
	api.Set("Decrypt", cipherFunc(false))
	api.Set("GenerateKey", generate)
	api.Set("AgreeStart", agreeStart)
	api.Set("AgreeFinish", agreeFinish)
	js.Global().Set("SeedCrypto", api)
}
