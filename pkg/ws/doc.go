// Package ws реализует защищённый WebSocket протокол для обмена
// типизированными пакетами между сервером и множеством клиентов:
//   - Рукопожатие на основе RSA-2048 + AES-256-GCM (сервер генерирует
//     общий ключ, передаёт его клиенту, затем проверяет владение
//     общим секретом через HMAC-SHA256 challenge/response)
//   - Реестр типов пакетов с расширением на стороне приложения
//   - Конверт с прозрачным сжатием (gzip) и прозрачным шифрованием
//   - Реестр сессий на сервере с адресацией по идентификатору
//   - Контроллер ping/pong и автопереподключения на клиенте
//
// # Сервер
//
//	handler := myHandler{}
//	server := ws.NewServer(ws.DefaultServerConfig("topsecret"), handler)
//	http.Handle("/ws", server)
//
// # Клиент
//
//	client := ws.NewSecureClient(ws.DefaultSecureClientConfig("ws://localhost:8080/ws", "topsecret"), &ws.ClientHandler{
//	    OnAuthenticated: func(s *ws.Session) { log.Println("authenticated") },
//	    OnPacket: func(s *ws.Session, p ws.Packet) { /* ... */ },
//	})
//	client.Connect(ctx)
//
// # Рукопожатие
//
//	C: PacketPublicKey (без шифрования)
//	S: PacketSharedSecret (без шифрования, RSA-OAEP от публичного ключа клиента)
//	S: PacketChallenge (шифрование AES-256-GCM общим ключом)
//	C: PacketChallengeResponse (HMAC-SHA256(challenge, apiKey))
//	S: PacketAuthSuccess / PacketAuthFailed
//
// После успешного рукопожатия все кадры на обеих сторонах шифруются;
// приём незашифрованного типизированного конверта после этого момента —
// протокольная ошибка.
//
// # Формат кадра
//
// Типизированный конверт:
//
//	{"type": "PacketPing", "data": {...}}
//
// Сжатый конверт (только если общего ключа ещё нет):
//
//	{"compressed": true, "payload": "base64(gzip(...))"}
//
// Зашифрованный конверт:
//
//	{"encrypted": true, "payload": "base64(ciphertext)", "iv": "base64(nonce)"}
package ws
